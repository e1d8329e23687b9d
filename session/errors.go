package session

import "errors"

var (
	ErrInvalidAmount    = errors.New("质押金额低于最低要求")
	ErrPurchaseRejected = errors.New("购买地产被拒绝")
	ErrSaleRejected     = errors.New("出售地产被拒绝")
	ErrBusy             = errors.New("上一个操作尚未完成")
	ErrIllegalPhase     = errors.New("当前阶段不允许该操作")
	ErrAlreadyJoined    = errors.New("该账户已在本局中")
	ErrClosed           = errors.New("会话已关闭")
	ErrStaleSnapshot    = errors.New("操作已生效但地产快照刷新失败")
	ErrBadResponse      = errors.New("后端返回的数据与本地状态不符")
)
