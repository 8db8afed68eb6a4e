package api

import (
	"github.com/BaSui01/agentcouncil/agent/council"
	"github.com/BaSui01/agentcouncil/llm/speech"
	"github.com/BaSui01/agentcouncil/types"
	"github.com/BaSui01/agentcouncil/workflow"
)

// =============================================================================
// 会话
// =============================================================================

// CreateSessionRequest 创建会话；AIConfig 为空时使用服务端默认配置
// @Description 创建会话请求
type CreateSessionRequest struct {
	AIConfig *types.AIConfig `json:"ai_config,omitempty"`
}

// SessionResponse 会话信息
// @Description 会话信息
type SessionResponse struct {
	ID       string         `json:"id"`
	AIConfig types.AIConfig `json:"ai_config"`
	Council  council.State  `json:"council"`
	LastSeq  uint64         `json:"last_seq"`
}

// =============================================================================
// 议会
// =============================================================================

// SendMessageRequest 用户发言
type SendMessageRequest struct {
	Text string `json:"text"`
}

// PivotRequest 围绕一条历史消息展开
type PivotRequest struct {
	MessageID string `json:"message_id"`
}

// ToggleRequest 开关类请求（头脑风暴、自动批准）
type ToggleRequest struct {
	Enabled bool `json:"enabled"`
}

// SummonExpertsRequest 召唤专家候选
type SummonExpertsRequest struct {
	Topic string `json:"topic"`
	Count int    `json:"count,omitempty"`
}

// ConfirmExpertsRequest 确认加入的专家
type ConfirmExpertsRequest struct {
	IDs []string `json:"ids"`
}

// ExpertsResponse 专家列表
type ExpertsResponse struct {
	Experts []types.Persona `json:"experts"`
}

// NarrateRequest 朗读纪要；Category 决定音色
type NarrateRequest struct {
	Category types.Category `json:"category,omitempty"`
}

// NarrateResponse Started 为 false 表示本次请求停止了正在进行的朗读
type NarrateResponse struct {
	Started bool          `json:"started"`
	Status  speech.Status `json:"status"`
}

// AckRequest 客户端播放完一个分段
type AckRequest struct {
	Index int `json:"index"`
}

// =============================================================================
// 工作流
// =============================================================================

// GenerateWorkflowRequest 按目标生成工作流
type GenerateWorkflowRequest struct {
	Goal string `json:"goal"`
}

// GenerateWorkflowResponse 生成结果；Fallback 表示使用了默认链
type GenerateWorkflowResponse struct {
	Graph    *workflow.Graph `json:"graph"`
	Fallback bool            `json:"fallback"`
}

// LoadTemplateRequest 载入模板时的种子文本
type LoadTemplateRequest struct {
	Seed string `json:"seed,omitempty"`
}

// RunWorkflowRequest 运行工作流；Seed 为空时使用 trigger 的输出
type RunWorkflowRequest struct {
	Seed string `json:"seed,omitempty"`
}

// UpdateNodeRequest 修改步骤指令
type UpdateNodeRequest struct {
	Instructions string `json:"instructions"`
}

// WorkflowResponse 画板快照
type WorkflowResponse struct {
	Graph     *workflow.Graph          `json:"graph"`
	Running   bool                     `json:"running"`
	LastRun   []workflow.StepExecution `json:"last_run,omitempty"`
	Templates []TemplateInfo           `json:"templates"`
}

// TemplateInfo 模板摘要
type TemplateInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Steps int    `json:"steps"`
}

// =============================================================================
// 运行日志
// =============================================================================

// RerunRequest 在指定会话的画板上重跑一条日志
type RerunRequest struct {
	SessionID string `json:"session_id"`
}

// LogListResponse 日志列表
type LogListResponse struct {
	Logs  []*types.WorkflowLog `json:"logs"`
	Count int                  `json:"count"`
}

// ClearLogsResponse 清空结果
type ClearLogsResponse struct {
	Deleted int `json:"deleted"`
}

// =============================================================================
// 角色
// =============================================================================

// PersonaCommandRequest 单角色指令；SessionID 决定使用哪个会话的模型配置与名册
type PersonaCommandRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Command   string `json:"command,omitempty"`
}

// =============================================================================
// 语音
// =============================================================================

// ChunkRequest 文本分段
type ChunkRequest struct {
	Text  string `json:"text"`
	Limit int    `json:"limit,omitempty"`
}

// ChunkResponse 分段结果
type ChunkResponse struct {
	Chunks []string `json:"chunks"`
	Count  int      `json:"count"`
}

// SynthesizeRequest 合成单个分段；响应体为音频
type SynthesizeRequest struct {
	Text     string         `json:"text"`
	APIKey   string         `json:"api_key,omitempty"`
	Category types.Category `json:"category,omitempty"`
	Format   string         `json:"format,omitempty"`
}
