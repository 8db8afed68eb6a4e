// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package tools 提供搜索工具网关。

[Gateway] 把文本查询转换为少量 (title, snippet, url) 记录作为模型的 grounding 上下文。
网关从不返回错误：任何失败（缺少密钥、网络错误、非 200、响应体损坏、限流等待被取消）
都返回 nil，调用方据此按“无 grounding 数据”继续。

后端通过 [WebSearchProvider] 抽象，默认实现为 Serper（google.serper.dev）。
*/
package tools
