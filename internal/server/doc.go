// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 管理 AgentCouncil 的 HTTP/HTTPS 监听生命周期。

Manager 封装 net/http.Server：Start 非阻塞启动（配置证书时走 TLS，
使用 tlsutil.ServerTLSConfig），Wait 在 context 结束或服务异常时
执行优雅关闭。cmd/agentcouncil 用它同时承载 API 与 metrics 两个端口。
*/
package server
