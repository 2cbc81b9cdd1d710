package inter

import "errors"

// 定义鉴权相关的标准错误
var (
	ErrInvalidToken = errors.New("auth: 令牌无效或已过期")
	ErrAccessDenied = errors.New("auth: 该资源访问受限")

	// ErrUnitRefused 对应 AuthenticateRefuse
	ErrUnitRefused = errors.New("auth: 单元认证已被拒绝，禁止接入")

	// ErrUnitPending 对应 AuthenticatePending
	ErrUnitPending = errors.New("auth: 单元认证审核中，请等待管理员通过")

	// ErrUnitUnknown 对应 AuthenticateUnknown
	ErrUnitUnknown = errors.New("auth: 未找到对应单元信息或状态未知")
)

// IdentityManager 定义了单元身份认证与安全管理的标准接口。
// 它负责将外部凭证（Token）转化为系统内部标识（UUID），并管理单元的准入生命周期。
type IdentityManager interface {
	// [身份生成]

	// GenerateUUID 根据单元唯一的硬件标识符（如芯片 uid）生成系统唯一的 UUID。
	// 该过程应是确定性的，即相同的 UnitMetadata.SerialNumber 和 UnitMetadata.MACAddress 始终生成相同的 UUID。
	GenerateUUID(meta UnitMetadata) (uuid string)

	// [身份注册与签发]

	// RegisterUnit 注册一个新单元到系统中。
	// uuid: 由 GenerateUUID 得到的单元标识；meta: 单元元数据。
	// 返回为该单元新签发的访问令牌 Token。
	RegisterUnit(uuid string, meta UnitMetadata) (token string, err error)
	// [凭证校验]

	// Authenticate 验证传入 Token 的合法性。
	// 如果验证通过，返回该单元对应的 UUID，否则返回 ErrInvalidToken。
	// 单元状态为拒绝/审核中/未知时分别返回 ErrUnitRefused/ErrUnitPending/ErrUnitUnknown。
	// 每次调用都经由 DataStore 的 token 唯一索引查询数据库，没有内存缓存。
	Authenticate(token string) (uuid string, err error)

	// [凭证管理]

	// RefreshToken 为指定单元重新生成访问令牌。
	// 旧的 Token 将失效，新的 Token 会同步到存储模块中。
	RefreshToken(uuid string) (newToken string, err error)

	// RevokeToken 吊销指定单元的访问权限。
	// 该操作会把存储中的 Token 替换为一个不会签发给单元的新值，使旧 Token 立即失效。
	RevokeToken(uuid string) error
}

// SessionUser 是经过会话认证的操作员用户最小视图，由 authboss.User
// 的具体实现类型断言得到，供 Web 层的权限中间件与模板渲染使用。
type SessionUser interface {
	GetUsername() string
	GetPermission() PermissionType
	// GetAssignedUnit 返回该操作员默认负责操作的单元 UUID（挖掘机或姿态平台），
	// 未指定时为空字符串，控制台首页以此决定默认跳转目标。
	GetAssignedUnit() string
}

// WebServer 是管理后台 HTTP 服务的启动接口。
type WebServer interface {
	Start()
}
