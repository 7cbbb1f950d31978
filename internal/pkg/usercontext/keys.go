package usercontext

// KeyUserContext is the fiber Locals key holding the UserContext.
const KeyUserContext = "USER_CONTEXT"

const RoleAdmin = "admin"
