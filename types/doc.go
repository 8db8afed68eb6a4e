// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 agentcouncil 的全局共享类型定义。

types 是最底层的公共包，不依赖任何内部包，为 llm、workflow、agent/council、
agent/persistence 与 api 等上层模块提供统一的数据契约：

  - Persona / Category  角色卡片（固定名册 + 动态召唤的专家）
  - AIConfig            每次模型调用读取的提供方选择与密钥
  - WorkflowLog         工作流运行的持久化摘要记录
  - Error / ErrorCode   面向 HTTP 层的结构化错误
*/
package types
