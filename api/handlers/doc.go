// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 AgentCouncil HTTP API 的请求处理器实现。

# 概述

会话级资源（议会引擎、工作流画板、事件流、朗读器）由 Workspace 按会话 ID
统一创建与回收，各 Handler 只负责请求解析、调用领域方法与响应封装。
所有 Handler 均遵循标准 net/http 接口，路由使用 Go 1.22 的方法 + 路径模式。

# 核心类型

  - SessionHandler    会话创建/查询/删除、模型设置、WebSocket 事件流
  - CouncilHandler    议会回合、搜索审批、专家召唤、纪要与朗读
  - WorkflowHandler   画板生成、模板、节点编辑与运行
  - LogHandler        运行日志查询、删除与重跑
  - PersonaHandler    角色名册与单角色指令
  - SpeechHandler     文本分段与单段合成
  - HealthHandler     存活/就绪探针与版本信息
  - Response          统一 JSON 响应结构（success + data + error + timestamp）

# 错误映射

ToAPIError 把各领域包的哨兵错误与 llm.Error 转成 types.Error，
再由 WriteError 按错误码映射 HTTP 状态：会话忙与搜索待审批为 409，
缺少密钥为 401，额度用尽为 402，上游故障为 502，超时为 504。
回合内的模型失败不会以 HTTP 错误返回，而是作为系统消息写入会话。
*/
package handlers
