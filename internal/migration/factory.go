package migration

import (
	"errors"
	"fmt"

	appconfig "github.com/BaSui01/agentcouncil/config"
)

// NewMigratorFromConfig 为 database 配置段创建迁移器，与 store.type 无关
func NewMigratorFromConfig(cfg *appconfig.Config) (*DefaultMigrator, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	return NewMigratorFromDatabaseConfig(cfg.Database)
}

// NewMigratorFromDatabaseConfig 按驱动拼出连接 URL；sqlite 的 Name 即文件路径
func NewMigratorFromDatabaseConfig(dbCfg appconfig.DatabaseConfig) (*DefaultMigrator, error) {
	dbType, err := ParseDatabaseType(dbCfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("invalid database type: %w", err)
	}
	if dbCfg.Name == "" {
		return nil, fmt.Errorf("%s migrations require database.name", dbType)
	}

	url := BuildDatabaseURL(dbType, dbCfg.Host, dbCfg.Port, dbCfg.Name, dbCfg.User, dbCfg.Password, dbCfg.SSLMode)
	return NewMigrator(&Config{DatabaseType: dbType, DatabaseURL: url})
}
