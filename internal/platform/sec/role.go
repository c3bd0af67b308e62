// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

// # Roles

// UserRole is the "rol" claim issued by the identity service.
type UserRole string

const (
	// Sees and manages every book, private ones included.
	RoleAdmin UserRole = "admin"

	// Publishes books and manages their own.
	RoleAuthor UserRole = "author"

	// Reads public books. Also the level of any signed-in caller.
	RoleReader UserRole = "reader"
)

// roleOrder lists roles from least to most privileged. Unknown roles rank
// below all of them.
var roleOrder = []UserRole{RoleReader, RoleAuthor, RoleAdmin}

// AtLeast reports whether r ranks at or above target.
func (r UserRole) AtLeast(target UserRole) bool {
	return r.rank() >= target.rank() && r.rank() > 0
}

func (r UserRole) rank() int {
	for index, role := range roleOrder {
		if role == r {
			return index + 1
		}
	}
	return 0
}
