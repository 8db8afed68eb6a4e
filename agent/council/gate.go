package council

import "errors"

// GateState 搜索审批门状态
type GateState string

const (
	GateNoRequest               GateState = "no_request"
	GatePendingApproval         GateState = "pending_approval"
	GateApproved                GateState = "approved"
	GateSearching               GateState = "searching"
	GateContinuedWithResults    GateState = "continued_with_results"
	GateDenied                  GateState = "denied"
	GateContinuedWithoutResults GateState = "continued_without_results"
)

// AutoApproveThreshold 开启自动批准所需的人工批准次数
const AutoApproveThreshold = 3

var (
	ErrNoPendingSearch   = errors.New("no search request is pending")
	ErrSearchInFlight    = errors.New("a search request is already in progress")
	ErrAutoApproveLocked = errors.New("auto-approve unlocks after 3 approved searches")
)

// SearchGate 搜索审批门。所有方法都是纯函数：返回新状态，不修改接收者。
type SearchGate struct {
	State       GateState      `json:"state"`
	Pending     *SearchRequest `json:"pending,omitempty"`
	Approvals   int            `json:"approvals"`
	AutoApprove bool           `json:"auto_approve"`
}

// NewSearchGate 初始状态
func NewSearchGate() SearchGate {
	return SearchGate{State: GateNoRequest}
}

// IsPending 是否在等待人工审批
func (g SearchGate) IsPending() bool { return g.State == GatePendingApproval }

// CanAutoApprove 是否已可开启自动批准
func (g SearchGate) CanAutoApprove() bool { return g.Approvals >= AutoApproveThreshold }

func (g SearchGate) busy() bool {
	switch g.State {
	case GatePendingApproval, GateApproved, GateSearching, GateDenied:
		return true
	}
	return false
}

// Propose 收到搜索请求。开启自动批准时直接进入 searching，第二个返回值为 true。
func (g SearchGate) Propose(req SearchRequest) (SearchGate, bool, error) {
	if g.busy() {
		return g, false, ErrSearchInFlight
	}
	r := req
	g.Pending = &r
	if g.AutoApprove {
		g.State = GateSearching
		return g, true, nil
	}
	g.State = GatePendingApproval
	return g, false, nil
}

// Approve 人工批准，计入批准次数
func (g SearchGate) Approve() (SearchGate, error) {
	if !g.IsPending() {
		return g, ErrNoPendingSearch
	}
	g.State = GateApproved
	g.Approvals++
	return g, nil
}

// Deny 人工拒绝
func (g SearchGate) Deny() (SearchGate, error) {
	if !g.IsPending() {
		return g, ErrNoPendingSearch
	}
	g.State = GateDenied
	return g, nil
}

// BeginSearch approved -> searching
func (g SearchGate) BeginSearch() SearchGate {
	if g.State == GateApproved {
		g.State = GateSearching
	}
	return g
}

// Resolve 搜索或拒绝之后的续聊，清除待处理请求
func (g SearchGate) Resolve(withResults bool) SearchGate {
	switch g.State {
	case GateDenied:
		g.State = GateContinuedWithoutResults
	case GateSearching, GateApproved:
		if withResults {
			g.State = GateContinuedWithResults
		} else {
			g.State = GateContinuedWithoutResults
		}
	default:
		return g
	}
	g.Pending = nil
	return g
}

// SetAutoApprove 开关自动批准，未达到阈值时不能开启
func (g SearchGate) SetAutoApprove(on bool) (SearchGate, error) {
	if on && !g.CanAutoApprove() {
		return g, ErrAutoApproveLocked
	}
	g.AutoApprove = on
	return g, nil
}
