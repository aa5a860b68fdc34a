package circle

// Table names as they appear in the data store's change feed.
const (
	TableAccounts    = "accounts"
	TableGroups      = "groups"
	TableMemberships = "group_members"
	TableMessages    = "messages"
)
