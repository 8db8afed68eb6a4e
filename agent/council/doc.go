// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package council 实现多角色议会对话引擎。

# 概述

每个会话一个 [Engine]，独占该会话的名册、消息记录、搜索审批门和头脑风暴计时器，
只能通过 Engine 的方法修改。同一时刻只有一个回合在执行（ErrBusy），
回合中的模型失败不会向上返回，而是追加一条系统消息；processing 标记总会释放。

# 搜索审批门

模型可以在回合中提出搜索请求（SearchRequest）。审批门的状态流转：

	no_request -> pending_approval -> approved -> searching -> continued_with_results
	                               \-> denied -> continued_without_results

待审批期间拒绝用户输入与自动续聊（ErrSearchPending）。累计批准 3 次后可开启自动批准，
此后的请求跳过 pending_approval 直接进入 searching。

# 头脑风暴

开启后，只要最后一条消息不是用户发的、没有回合在执行、也没有待审批的搜索，
引擎会通过 [Scheduler] 在固定延迟（默认 6s）后自动续聊。新的用户输入或切换模式会取消计时。
*/
package council
