// db/repo_users_admin.go
package db

import (
	"context"
	"errors"
	"strings"

	"Gin_postgres_redis_tool_lending/models"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func HashPassword(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func CheckPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

func emailTaken(tx *gorm.DB, email string, exceptID uint) error {
	var u models.User
	err := tx.Where("email = ? AND id <> ?", email, exceptID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return conflictf("email address %q already in use", email)
}

func userExists(tx *gorm.DB, id uint) error {
	var n int64
	if err := tx.Model(&models.User{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return notFound("user", id)
	}
	return nil
}

type NewUser struct {
	Firstname    string
	Lastname     string
	Email        string
	Password     string
	IsActive     bool
	RoleID       uint
	DepartmentID uint
}

// CreateUser：角色为 DEPARTMENT_MANAGER 时该用户直接成为所在部门的 lead
func (r *Repo) CreateUser(ctx context.Context, in NewUser) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || strings.TrimSpace(in.Firstname) == "" || strings.TrimSpace(in.Lastname) == "" || in.Password == "" {
		return nil, invalidf("firstname, lastname, email and password are required")
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	var u models.User
	err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := emailTaken(tx, email, 0); err != nil {
			return err
		}
		role, err := lookupName(tx, &models.Role{}, "role", in.RoleID)
		if err != nil {
			return err
		}
		d, err := lockDepartment(tx, in.DepartmentID)
		if err != nil {
			return err
		}
		u = models.User{
			Handle:       uuid.NewString(),
			Firstname:    strings.TrimSpace(in.Firstname),
			Lastname:     strings.TrimSpace(in.Lastname),
			Email:        email,
			PasswordHash: hash,
			IsActive:     in.IsActive,
			RoleID:       in.RoleID,
			DepartmentID: d.ID,
		}
		if err := tx.Create(&u).Error; err != nil {
			return duplicateAs(err, "email address %q already in use", email)
		}
		if role == models.RoleDepartmentManager {
			return r.enterLeadership(tx, u.ID, d, models.LeadReasonUserUpdate)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.FindUserByID(ctx, u.ID)
}

// UserUpdate：nil 字段不改
type UserUpdate struct {
	Firstname    *string
	Lastname     *string
	Email        *string
	Password     *string
	IsActive     *bool
	RoleID       *uint
	DepartmentID *uint
}

// UpdateUser 先做 leadership 的账（离开旧 lead 位置 / 进入新部门的 lead 位置），再写其余字段
func (r *Repo) UpdateUser(ctx context.Context, id uint, in UserUpdate) (*models.User, error) {
	var hash string
	if in.Password != nil {
		if *in.Password == "" {
			return nil, invalidf("password must not be empty")
		}
		h, err := HashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		hash = h
	}

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Preload("Role").First(&u, id).Error; err != nil {
			return notFoundOr(err, "user", id)
		}

		curRole := u.RoleName()
		newRole := curRole
		if in.RoleID != nil && *in.RoleID != u.RoleID {
			name, err := lookupName(tx, &models.Role{}, "role", *in.RoleID)
			if err != nil {
				return err
			}
			newRole = name
		}
		newDeptID := u.DepartmentID
		if in.DepartmentID != nil {
			newDeptID = *in.DepartmentID
		}
		deptChanged := newDeptID != u.DepartmentID
		var target *models.Department
		if deptChanged {
			d, err := lockDepartment(tx, newDeptID)
			if err != nil {
				return err
			}
			target = d
		}

		wasManager := curRole == models.RoleDepartmentManager
		becomesManager := newRole == models.RoleDepartmentManager

		// 1) 离开 lead 位置：旧部门随机选继任者
		if wasManager && (!becomesManager || deptChanged) {
			led, err := leadOf(tx, u.ID)
			if err != nil {
				return err
			}
			if led != nil {
				if err := r.appointSuccessor(tx, led, u.ID, models.LeadReasonUserUpdate); err != nil {
					return err
				}
			}
		}
		// 2) 进入 lead 位置：新部门原 lead 降级
		if becomesManager && (!wasManager || deptChanged) {
			if target == nil {
				d, err := lockDepartment(tx, newDeptID)
				if err != nil {
					return err
				}
				target = d
			}
			if err := r.enterLeadership(tx, u.ID, target, models.LeadReasonUserUpdate); err != nil {
				return err
			}
		}

		// 3) 其余字段
		updates := map[string]any{}
		if in.RoleID != nil {
			updates["role_id"] = *in.RoleID
		}
		if in.DepartmentID != nil {
			updates["department_id"] = *in.DepartmentID
		}
		if in.Firstname != nil {
			if strings.TrimSpace(*in.Firstname) == "" {
				return invalidf("firstname must not be empty")
			}
			updates["firstname"] = strings.TrimSpace(*in.Firstname)
		}
		if in.Lastname != nil {
			if strings.TrimSpace(*in.Lastname) == "" {
				return invalidf("lastname must not be empty")
			}
			updates["lastname"] = strings.TrimSpace(*in.Lastname)
		}
		if in.Email != nil {
			email := strings.ToLower(strings.TrimSpace(*in.Email))
			if email == "" {
				return invalidf("email must not be empty")
			}
			if err := emailTaken(tx, email, u.ID); err != nil {
				return err
			}
			updates["email"] = email
		}
		if in.IsActive != nil {
			updates["is_active"] = *in.IsActive
		}
		if hash != "" {
			updates["password_hash"] = hash
		}
		if len(updates) == 0 {
			return nil
		}
		err := tx.Model(&models.User{}).Where("id = ?", u.ID).Updates(updates).Error
		return duplicateAs(err, "email address %v already in use", updates["email"])
	})
	if err != nil {
		return nil, err
	}
	return r.FindUserByID(ctx, id)
}

// DeleteUserByID：若该用户是某部门的 lead，先选继任者再删；凭据和邀请一并删除
func (r *Repo) DeleteUserByID(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&u, id).Error; err != nil {
			return notFoundOr(err, "user", id)
		}
		led, err := leadOf(tx, u.ID)
		if err != nil {
			return err
		}
		if led != nil {
			if err := r.appointSuccessor(tx, led, u.ID, models.LeadReasonUserDeleted); err != nil {
				return err
			}
		}
		if err := tx.Where("user_id = ?", u.ID).Delete(&models.Credential{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", u.ID).Delete(&models.Invite{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, u.ID).Error
	})
}

func (r *Repo) CountAdmins(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).
		Model(&models.User{}).
		Joins("JOIN lsb_roles ON lsb_roles.id = "+models.UserTable+".role_id").
		Where("lsb_roles.name = ?", models.RoleAdmin).
		Count(&n).Error
	return n, err
}
