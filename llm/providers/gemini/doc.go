// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
包 gemini 实现 Google Gemini generateContent 调用。

  - 使用 x-goog-api-key 请求头认证
  - JSON 模式通过 generationConfig.responseMimeType = application/json
  - 联网搜索通过 googleSearch 工具，引用从 groundingMetadata.groundingChunks 提取
  - 附件以 inlineData（base64）随用户消息发送
*/
package gemini
