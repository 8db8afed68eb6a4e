// Package api 定义 agentcouncil HTTP API 的请求与响应结构。
//
// # API Overview
//
// 每个会话包含一个议会（多角色讨论）和一块工作流画板：
//   - /api/v1/sessions              创建与关闭会话，修改会话的模型配置
//   - /api/v1/sessions/{id}/events  WebSocket 事件流，支持 ?since=<seq> 回放
//   - /api/v1/sessions/{id}/council 议会回合、搜索审批、专家召唤、纪要
//   - /api/v1/sessions/{id}/workflow 工作流生成、模板、运行
//   - /api/v1/logs                  运行日志
//   - /api/v1/personas              单角色指令
//   - /api/v1/speech                分段与合成
//
// # Authentication
//
// 配置了 server.api_keys 时需要 X-API-Key 请求头；配置了 jwt.secret 时需要
// Authorization: Bearer <token>。浏览器的 WebSocket 连接可以改用 ?api_key=。
//
// 所有 JSON 响应使用统一信封：
//
//	{"success": true, "data": {...}, "timestamp": "...", "request_id": "req-..."}
package api
