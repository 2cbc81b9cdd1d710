package inter

import "time"

type AuthenticateStatusType int

const (
	Authenticated       AuthenticateStatusType = iota // 已认证
	AuthenticateRefuse                                // 拒绝认证
	AuthenticatePending                               // 等待认证
	AuthenticateUnknown                               // 未知的单元
	AuthenticateRevoked                               // 已吊销

)

// PermissionType 用户权限类型
type PermissionType int

const (
	PermissionNone      PermissionType = iota // 零权限
	PermissionReadOnly                        // 只读
	PermissionReadWrite                       // 读写
	PermissionAdmin                           // 管理员
)

// UnitMetadata 单元静态元数据
type UnitMetadata struct {
	Name               string                 `json:"name"`               // 单元名称
	HWVersion          string                 `json:"hw_version"`         // 硬件版本
	SWVersion          string                 `json:"sw_version"`         // 固件/软件版本
	ConfigVersion      string                 `json:"config_version"`     // 配置文件版本
	SerialNumber       string                 `json:"sn"`                 // 序列号
	MACAddress         string                 `json:"mac"`                // Mac 地址
	CreatedAt          time.Time              `json:"created_at"`         // 首次注册时间
	Token              string                 `json:"token"`              // 单元 Token
	AuthenticateStatus AuthenticateStatusType `json:"authenticateStatus"` // 单元认证状态
}

// UnitRecord 单元记录（用于列表展示）
type UnitRecord struct {
	UUID string         `json:"uuid"`
	Meta UnitMetadata `json:"meta"`
}

// MetricPoint 传感器采样点
type MetricPoint struct {
	Timestamp int64   `json:"ts"`    // Unix 时间戳
	Value     float32 `json:"value"` // 物理数值
	Type      uint8   `json:"type"`  // 通道类型（如关节角度、液压、姿态轴）
}

// DataStore 定义了底层数据持久化的标准接口，用于管理单元生命周期、配置、时序指标及日志。
// 该接口旨在兼容多种存储后端（如 SQLite, PostgreSQL 或时序数据库）。
type DataStore interface {
	// [生命周期管理]

	// InitUnit 初始化一个新的单元存储空间。
	// uuid 是单元的唯一标识符，meta 包含单元的初始元数据（如型号、硬件版本等）。
	// 如果单元已存在，应返回错误。
	InitUnit(uuid string, meta UnitMetadata) error

	// DestroyUnit 彻底删除指定单元的所有数据，包括配置、时序指标和日志。
	DestroyUnit(uuid string) error

	// [配置与元数据管理]

	// LoadConfig 从存储中读取指定单元的配置信息。
	LoadConfig(uuid string) (out UnitMetadata, err error)

	// SaveMetadata 将元信息持久化到存储中（冷数据存储）。
	// meta 是要保存的配置对象，该方法会覆盖原有的配置。
	SaveMetadata(uuid string, meta UnitMetadata) error

	// ListUnits 分页查询已注册的单元列表。
	// page 指定页码（通常从 1 开始），size 指定每页返回的条数。
	ListUnits(page, size int) ([]UnitRecord, error)

	// ListUnitsByStatus 根据认证状态分页查询单元列表
	ListUnitsByStatus(status AuthenticateStatusType, page, size int) ([]UnitRecord, error)

	// [时序数据管理]

	// AppendMetric 向指定单元追加一条时序数据。
	// ts 为 Unix 时间戳（秒或毫秒，取决于系统实现），value 为传感器采集的浮点数值。
	AppendMetric(uuid string, points MetricPoint) error

	// BatchAppendMetrics 同时插入多条数据
	BatchAppendMetrics(uuid string, points []MetricPoint) error

	// QueryMetrics 查询指定时间范围内的时序数据。
	// start 和 end 分别为开始和结束的时间戳（闭区间）。
	QueryMetrics(uuid string, start, end int64) ([]MetricPoint, error)

	// [日志管理]

	// WriteLog 记录一条与单元相关的运行日志。
	// level 通常为 "info", "warn", "error" 等级别，用于后续过滤。
	WriteLog(uuid string, level string, message string) error

	// [权限与映射管理]

	// GetUnitByToken 根据 Token 查找对应的单元 UUID。
	GetUnitByToken(token string) (uuid string, Status AuthenticateStatusType, err error)

	// UpdateToken 更新指定单元的 Token。
	// 用于 Token 过期重刷或安全性重置场景。
	UpdateToken(uuid string, newToken string) error

	// [用户管理]

	// RegisterUser 注册一个新用户。
	// username 为用户名（唯一），password 为明文密码，permission 为权限字段。
	RegisterUser(username, password string, permission PermissionType) error

	// LoginUser 用户登录验证。
	// 验证成功返回用户的权限级别，失败返回错误。
	LoginUser(username, password string) (PermissionType, error)

	// ChangePassword 修改用户密码。
	// 需要验证 oldPassword 是否正确，如果正确则更新为 newPassword。
	ChangePassword(username, oldPassword, newPassword string) error

	// GetUserCount 获取注册用户总数
	GetUserCount() (int, error)

	// ListUsers 获取所有用户列表（仅管理员可用）
	ListUsers() ([]User, error)

	// GetUserPermission 获取指定用户的当前权限
	GetUserPermission(username string) (PermissionType, error)

	// UpdateUserPermission 更新用户权限（仅管理员可用）
	UpdateUserPermission(username string, perm PermissionType) error

	// UpdateUserAssignedUnit 设置用户默认负责操作的单元 UUID（仅管理员可用），
	// 传入空字符串表示取消分配。
	UpdateUserAssignedUnit(username, uuid string) error
}

// User 用户信息
type User struct {
	Username     string         `json:"username"`
	Permission   PermissionType `json:"permission"`
	AssignedUnit string         `json:"assigned_unit"`
	CreatedAt    time.Time      `json:"created_at"`
}
