package rbac

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	"learner": {
		"session:create",
		"session:view-own",
		"practice:submit",
		"practice:reveal",
	},
	"author": {
		"session:view-all",
		"practice:generate",
	},
	"admin": {
		"*", // everything
	},
}
