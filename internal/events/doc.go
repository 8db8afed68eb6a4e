// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

// Package events 为每个会话维护带序号的事件流。
//
// 议会引擎和工作流画板的状态变化通过 Hub.Publish 写入；WebSocket 客户端用
// Subscribe(sessionID, since) 先拿到回放，再持续接收新事件。每个会话保留最近
// bufferSize 个事件，断线重连时带上最后的 seq 即可续上。
package events
