// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
包 providers 收纳各模型服务商的公共工具：HTTP 错误映射、错误消息读取与配置结构。

具体实现位于子包：

  - gemini  Google Gemini generateContent，googleSearch 工具与 groundingMetadata 引用
  - openai  Chat Completions（json_object 模式、图片附件）与 Responses API 联网搜索
*/
package providers
