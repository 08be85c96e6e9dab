// Package hostrpc provides the Connect RPC transport between the player and
// its host shell. Messages are protobuf well-known types, so no generated
// code is involved:
//
//	/tome.host.v1.HostService/Invoke     Struct{command, args} -> Empty    (player -> host)
//	/tome.player.v1.PlayerService/Emit    StringValue{event}    -> Empty    (host -> player)
//	/tome.player.v1.PlayerService/Status  Empty                 -> Struct
//	/tome.player.v1.PlayerService/Enqueue StringValue{path}     -> Int32Value (tracks added)
package hostrpc

const (
	// HostServiceName is the fully-qualified name of the host service.
	HostServiceName = "tome.host.v1.HostService"
	// PlayerServiceName is the fully-qualified name of the player service.
	PlayerServiceName = "tome.player.v1.PlayerService"
)

const (
	HostInvokeProcedure    = "/" + HostServiceName + "/Invoke"
	PlayerEmitProcedure    = "/" + PlayerServiceName + "/Emit"
	PlayerStatusProcedure  = "/" + PlayerServiceName + "/Status"
	PlayerEnqueueProcedure = "/" + PlayerServiceName + "/Enqueue"
)

// TokenHeader is the header carrying the shared host token.
const TokenHeader = "X-Host-Token"
