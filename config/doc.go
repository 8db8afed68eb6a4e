// Package config 加载 AgentCouncil 的服务配置。
//
// 配置优先级为 默认值 → YAML 文件 → AGENTCOUNCIL_ 前缀的环境变量。
// Watcher 轮询配置文件，在运行时重载日志级别等字段。
package config
