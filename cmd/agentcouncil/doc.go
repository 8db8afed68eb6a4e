// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package main 提供 AgentCouncil 服务端程序入口。

# 概述

cmd/agentcouncil 装配议会引擎、工作流看板、日志存储与语音朗读，
对外提供 HTTP/WebSocket API，并附带数据库迁移与离线朗读子命令。

# 核心类型

  - Server       主服务器，管理 API、Metrics 双端口及优雅关闭
  - Middleware   HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve、migrate、narrate、version、health
  - 中间件链：Recovery、RequestID、SecurityHeaders、RequestLogger、
    Metrics、OTelTracing、CORS、RateLimiter、JWTAuth 或 APIKeyAuth
  - 存储：memory / file / redis / database 日志后端，Redis 兼作搜索缓存
  - 配置热重载：监听配置文件，变更后调整日志级别
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
