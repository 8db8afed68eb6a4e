// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 打开 AgentCouncil 的关系型数据库并管理 GORM 连接池。

Open 根据 config.DatabaseConfig 选择 postgres、mysql 或 sqlite（纯 Go 驱动）
方言，SQL 日志写入 zap。PoolManager 负责连接池参数、后台健康检查和
关闭；健康检查时通过 StatsRecorder 上报连接数。
*/
package database
