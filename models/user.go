package models

import (
	"time"
)

const UserTable = "lsb_users"

// 角色按名字识别，不依赖插入顺序
const (
	RoleAdmin             = "ADMIN"
	RoleDepartmentManager = "DEPARTMENT_MANAGER"
	RoleEmployee          = "EMPLOYEE"
)

type Role struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:50;uniqueIndex;not null" json:"name"`
}

func (Role) TableName() string { return "lsb_roles" }

// User.Handle 是 UUID 字符串，用作 WebAuthn userHandle（用时转 []byte）
type User struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Handle       string `gorm:"size:36;uniqueIndex;not null" json:"-"`
	Firstname    string `gorm:"size:100;not null" json:"firstname"`
	Lastname     string `gorm:"size:100;not null" json:"lastname"`
	Email        string `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"size:255;not null" json:"-"`
	IsActive     bool   `gorm:"not null" json:"isActive"`

	RoleID       uint  `gorm:"index;not null" json:"roleId"`
	Role         *Role `gorm:"foreignKey:RoleID" json:"role,omitempty"`
	DepartmentID uint  `gorm:"index;not null" json:"departmentId"`

	LastLoginAt *time.Time `gorm:"index" json:"lastLoginAt,omitempty"`
	LastSeenAt  *time.Time `gorm:"index" json:"lastSeenAt,omitempty"`
	LoginCount  int64      `gorm:"not null;default:0" json:"loginCount"`
	LastLoginIP string     `gorm:"size:45" json:"-"`  // 可选，前端一般不直接展示
	LastLoginUA string     `gorm:"size:255" json:"-"` // 可选

	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	Credentials []Credential `gorm:"foreignKey:UserID" json:"-"`
}

func (User) TableName() string {
	return UserTable
}

// RoleName 需要先 Preload("Role")
func (u *User) RoleName() string {
	if u.Role == nil {
		return ""
	}
	return u.Role.Name
}

// Credential 为每个注册的 Passkey 存档
// 注意：CredentialID / PublicKey 为二进制，GORM 在 Postgres 下用 bytea
type Credential struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"index;not null" json:"userId"`
	CredentialID    []byte    `gorm:"uniqueIndex" json:"credentialId"`
	PublicKey       []byte    `json:"-"`
	AttestationType string    `gorm:"size:64" json:"attestationType"`
	AAGUID          []byte    `json:"aaguid"`
	SignCount       uint32    `json:"signCount"`
	CloneWarning    bool      `json:"cloneWarning"`
	BackupEligible  bool      `json:"backupEligible"`
	BackupState     bool      `json:"backupState"`
	TransportsJSON  string    `gorm:"type:text" json:"transportsJson"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`

	LastUsedAt *time.Time `gorm:"index" json:"lastUsedAt,omitempty"`
}

func (Credential) TableName() string { return "lsb_credentials" }
