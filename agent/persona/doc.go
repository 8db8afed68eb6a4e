// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

// Package persona 提供角色名册（Roster）与单角色指令（Commander）。
//
// Roster 只追加不删除，并发安全；默认名册包含五个固定角色，
// 议会召唤的专家在会话内追加。Commander 负责单个角色的指令、
// 特殊动作、状态报告与任务日志，所有失败都转换为角色化的兜底文案。
package persona
