package inter

// UnitStatus 定义单元的逻辑在线状态
type UnitStatus int

const (
	StatusOffline UnitStatus = iota // 离线
	StatusOnline                      // 在线
	StatusDelayed                     // 延迟（心跳超过阈值但未完全判定为离线）
)

// UnitManager 定义单元管理的核心业务逻辑接口
type UnitManager interface {

	// HandleHeartbeat 处理单元心跳
	// 作用: 更新单元在线状态/最后活跃时间。
	// 无返回值；堆积的指令需另行通过 QueueIsEmpty/QueuePop 取出。
	HandleHeartbeat(uuid string)

	QueryUnitStatus(uuid string) (UnitStatus, error)

	// QueuePush 向指定单元的下行队列追加一条指令
	QueuePush(uuid string, message interface{}) error

	// QueuePop 从指定单元的下行队列取出一条待下发指令
	QueuePop(uuid string) (interface{}, bool)

	// QueueIsEmpty 指定单元的下行队列是否为空
	QueueIsEmpty(uuid string) bool
}

// MessageQueue 定义消息队列的底层操作接口
// 用于缓冲后端发往单元的指令
type MessageQueue interface {
	// Push 入队
	// 将指令推入指定 UUID 的队列中
	Push(uuid string, message interface{}) error

	// Pop 出队
	// 从指定 UUID 的队列中取出最早的一条指令 (FIFO)
	// 返回: (指令内容, 是否存在指令)
	Pop(uuid string) (interface{}, bool)

	// IsEmpty 判断指定 UUID 的队列是否为空
	IsEmpty(uuid string) bool
}
