// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 提供与模型服务商无关的调用适配层。

# 概述

上层引擎（workflow、agent/council、agent/persona）只依赖 [Invoker]，
由 [Adapter] 负责凭据解析、默认模型、联网搜索降级、链路追踪与指标上报。
服务商特有的请求/响应结构只允许出现在 llm/providers 子包中。

# 错误体系

所有失败都以 [*Error] 返回，通过 [ErrorCode] 区分：

  - ErrMissingCredential   缺少必须的密钥，在任何网络请求之前失败
  - ErrQuotaExceeded / ErrRateLimited  配额或限流，调用方不得自动重试
  - ErrMalformedResponse   JSON 模式下无法解析的结构化输出
  - ErrSearchUnavailable   搜索网关无结果
  - 其余为服务商错误（ErrUpstreamError、ErrUnauthorized 等）

# JSON 容错解析

[DecodeJSON] 是唯一的容错解析入口：去除 Markdown 代码块；
当目标为切片而文本为对象时，取对象中按文档顺序出现的第一个数组成员。
*/
package llm
