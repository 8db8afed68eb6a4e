// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 migration 管理 AgentCouncil 的数据库 Schema，基于 golang-migrate。

各方言（postgres、mysql、sqlite）的 SQL 文件通过 embed 打包，目前只有
workflow_logs 表。DefaultMigrator 提供 Up/Down/Steps/Goto/Force/Version/
Status/Info，CLI 把它们映射为 `agentcouncil migrate <command>` 子命令。
sqlite 使用纯 Go 驱动，与 gorm 的 sqlite 方言共享同一注册名。
*/
package migration
