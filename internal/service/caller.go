package service

import "TownSquare/internal/model"

// Caller 当前请求的调用者，零值表示匿名
type Caller struct {
	ID   uint64
	Role model.Role
	Name string
}

func (c Caller) Authenticated() bool {
	return c.ID != 0
}

func (c Caller) IsAdmin() bool {
	return c.Authenticated() && c.Role == model.RoleAdmin
}

// CanManage 管理员或拥有者才能修改/删除
func CanManage(c Caller, ownerID uint64) bool {
	return c.IsAdmin() || (c.Authenticated() && c.ID == ownerID)
}
