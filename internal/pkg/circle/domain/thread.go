package circle

// ThreadKind distinguishes direct (peer-to-peer) threads from group threads.
type ThreadKind string

const (
	ThreadDirect ThreadKind = "direct"
	ThreadGroup  ThreadKind = "group"
)

// Thread is a derived conversational target, not a stored entity.
// For a direct thread ID is the peer account's id; for a group thread
// it is the group's id.
type Thread struct {
	ID          string     `json:"id"`
	Kind        ThreadKind `json:"kind"`
	DisplayName string     `json:"display_name"`
	AvatarURL   *string    `json:"avatar_url,omitempty"`
}

// DirectThread builds the thread view for a peer account.
func DirectThread(peer Account) Thread {
	return Thread{ID: peer.ID, Kind: ThreadDirect, DisplayName: peer.DisplayName, AvatarURL: peer.AvatarURL}
}

// GroupThread builds the thread view for a group.
func GroupThread(g Group) Thread {
	return Thread{ID: g.ID, Kind: ThreadGroup, DisplayName: g.Name}
}
