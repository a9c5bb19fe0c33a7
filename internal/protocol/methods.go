package protocol

// Method names the broker treats opaquely except where noted. Everything
// else is routed through to the target peer's Channel unexamined.
const (
	// MethodPeerJoin is the host-only admission handshake invoked by
	// the room manager's requestJoin. Params: [PublicUser]. Returns bool.
	MethodPeerJoin = "peer/join"
	// MethodPeerInfo notifies a peer of its own public projection.
	MethodPeerInfo = "peer/info"
	// MethodPeerInit lets a freshly joined peer fetch initial state from
	// the host.
	MethodPeerInit = "peer/init"

	MethodRoomJoined             = "room/joined"
	MethodRoomLeft               = "room/left"
	MethodRoomClosed             = "room/closed"
	MethodRoomPermissionsUpdated = "room/permissionsUpdated"

	MethodEditorUpdate   = "editor/update"
	MethodEditorPresence = "editor/presence"

	MethodFileSystemStat     = "fileSystem/stat"
	MethodFileSystemMkdir    = "fileSystem/mkdir"
	MethodFileSystemReadFile = "fileSystem/readFile"
	MethodFileSystemWriteFile = "fileSystem/writeFile"
	MethodFileSystemReadDir  = "fileSystem/readDir"
	MethodFileSystemDelete   = "fileSystem/delete"
	MethodFileSystemRename   = "fileSystem/rename"
)
