// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
包 openai 实现 OpenAI 的两条调用路径：

  - /v1/chat/completions：普通调用，JSON 模式使用 response_format=json_object，
    图片附件以 data URI 形式的 image_url 发送
  - /v1/responses：联网搜索，挂载 web_search_preview 工具，
    引用从 output_text 的 url_citation 注解中提取
*/
package openai
