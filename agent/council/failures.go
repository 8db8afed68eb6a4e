package council

import "github.com/BaSui01/agentcouncil/llm"

const (
	QuotaFailureText      = "The Council is napping (Quota Exceeded). We'll be back online soon! 💤"
	CredentialFailureText = "Please enter your API key in Settings to chat with the Council!"
	genericFailurePrefix  = "The team is having a static fit: "
)

// FailureText 把回合失败转换为系统消息文本；通用错误保留原始错误便于排查
func FailureText(err error) string {
	switch {
	case llm.IsQuotaExceeded(err):
		return QuotaFailureText
	case llm.IsMissingCredential(err):
		return CredentialFailureText
	default:
		return genericFailurePrefix + err.Error()
	}
}
