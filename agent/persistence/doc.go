// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 persistence 提供工作流运行日志（WorkflowLog）的持久化存储抽象及多后端实现。

# 核心接口

  - Store: 所有存储的基础接口，提供 Close 和 Ping 健康检查。
  - LogStore: 运行日志存储，支持追加、按 ID 读取、倒序分页列表、
    按 ID 删除与全部清空。日志写入后不可变。

# 后端实现

  - Memory: 内存实现，适合开发与测试，重启后数据丢失。
  - File: 基于文件的实现，原子写入 JSON 索引，适合单节点部署。
  - Redis: 每条日志一个 JSON 值，Sorted Set 按时间索引，适合分布式部署。
  - Database: 基于 gorm 的 workflow_logs 表，支持 postgres / mysql / sqlite，
    表结构由 internal/migration 管理。

所有后端都支持 MaxLogs 上限，超出时淘汰最旧的日志。

# 使用方式

	store, err := persistence.NewLogStore(cfg, persistence.WithDB(db))

Instrument 为任意 LogStore 增加耗时观测。
*/
package persistence
