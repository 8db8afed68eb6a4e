// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package workflow 提供线性工作流画板（Board）的生成、模板加载与执行。

# 概述

画板是一张有向图：trigger → agent_step* → terminal。图结构本身是通用的，
但执行器只沿每个节点的第一条出边前进，每一步把上游节点的输出作为输入，
并以角色类别、节点指令和上游输出调用模型。执行设有跳数上限（默认 10），
即使图有环或断链也一定终止。

每次运行恰好产出一条 types.WorkflowLog：
到达 terminal 为 success，中途出错为 failed，未出错但未到达 terminal 为 partial。

# 核心类型

  - Graph / Node / Edge   画板图结构与节点状态
  - ChainBuilder          线性链 Fluent 构建器
  - Generator             通过 JSON 模式让模型规划步骤（失败时退回默认两步链）
  - Template              内置模板（news-briefing / code-factory / creative-suite / premium-blog）
  - Board                 单会话画板：生成、加载模板、编辑指令、运行
  - Boards                按会话 ID 管理画板
  - RunHistory            单次运行的逐步执行记录
*/
package workflow
