// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖 HTTP、模型调用、
搜索、语音合成、工作流、议会与存储。

# 概述

Collector 使用 promauto 自动注册到默认 Registry，所有指标按 namespace
隔离。各业务包只声明自己的 Observer 接口，Collector 统一实现，
在 cmd/agentcouncil 中注入。

# 主要能力

  - HTTP 指标：请求总数、耗时、请求/响应体大小，状态码归类为 2xx/3xx/4xx/5xx。
  - LLM 指标：按 provider/model/status 的调用次数与耗时。
  - 搜索与语音：网关调用与分段合成的次数与耗时。
  - 工作流指标：步骤与运行的次数、耗时及每次运行的步骤数。
  - 议会指标：回合次数与耗时、搜索审批门状态变化、活跃会话与事件订阅数。
  - 存储指标：日志存储操作次数与耗时，数据库连接池 Gauge。
*/
package metrics
