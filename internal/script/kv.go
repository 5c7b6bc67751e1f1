package script

import (
	"time"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/chromad/internal/kv"
)

const bucketTypeName = "kv_bucket"

// bucketPrefix keeps script buckets apart from the daemon's own.
const bucketPrefix = "script:"

// KVModule gives scripts named buckets:
//
//	local b = kv.bucket("counters")
//	b:set("presses", (b:get("presses") or 0) + 1)
type KVModule struct {
	manager *kv.Manager
}

// NewKVModule creates a new KV module.
func NewKVModule(manager *kv.Manager) *KVModule {
	return &KVModule{manager: manager}
}

// Loader is the module loader for Lua.
func (m *KVModule) Loader(L *lua.LState) int {
	mt := L.NewTypeMetatable(bucketTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), bucketMethods))

	mod := L.NewTable()
	L.SetField(mod, "bucket", L.NewFunction(m.bucket))

	L.Push(mod)
	return 1
}

// bucket(name, opts) -> Bucket
// opts: { persistent = true/false }
func (m *KVModule) bucket(L *lua.LState) int {
	name := L.CheckString(1)

	persistent := true
	if opts := L.OptTable(2, nil); opts != nil {
		if p := L.GetField(opts, "persistent"); p != lua.LNil {
			persistent = lua.LVAsBool(p)
		}
	}

	ud := L.NewUserData()
	ud.Value = m.manager.Bucket(bucketPrefix+name, persistent)
	L.SetMetatable(ud, L.GetTypeMetatable(bucketTypeName))

	L.Push(ud)
	return 1
}

var bucketMethods = map[string]lua.LGFunction{
	"set":    bucketSet,
	"get":    bucketGet,
	"delete": bucketDelete,
	"keys":   bucketKeys,
	"clear":  bucketClear,
}

func checkBucket(L *lua.LState, pos int) kv.Bucket {
	ud := L.CheckUserData(pos)
	if bucket, ok := ud.Value.(kv.Bucket); ok {
		return bucket
	}
	L.ArgError(pos, "bucket expected")
	return nil
}

// set(key, value, opts)
// opts: { ttl = seconds }
func bucketSet(L *lua.LState) int {
	bucket := checkBucket(L, 1)
	key := L.CheckString(2)
	value := LuaToGo(L.Get(3))

	var opts *kv.StoreOptions
	if optsTable := L.OptTable(4, nil); optsTable != nil {
		if ttl, ok := L.GetField(optsTable, "ttl").(lua.LNumber); ok {
			opts = &kv.StoreOptions{TTL: time.Duration(float64(ttl) * float64(time.Second))}
		}
	}

	if err := bucket.Store(key, value, opts); err != nil {
		log.Warn().Err(err).
			Str("bucket", bucket.Name()).
			Str("key", key).
			Msg("Failed to store value")
	}
	return 0
}

// get(key) -> value | nil
func bucketGet(L *lua.LState) int {
	bucket := checkBucket(L, 1)
	key := L.CheckString(2)

	var value interface{}
	found, err := bucket.Load(key, &value)
	if err != nil {
		log.Warn().Err(err).
			Str("bucket", bucket.Name()).
			Str("key", key).
			Msg("Failed to get value")
	}
	if err != nil || !found {
		L.Push(lua.LNil)
		return 1
	}

	L.Push(GoToLuaValue(L, value))
	return 1
}

// delete(key) -> bool
func bucketDelete(L *lua.LState) int {
	bucket := checkBucket(L, 1)
	key := L.CheckString(2)

	deleted, err := bucket.Delete(key)
	if err != nil {
		log.Warn().Err(err).
			Str("bucket", bucket.Name()).
			Str("key", key).
			Msg("Failed to delete key")
	}
	L.Push(lua.LBool(deleted))
	return 1
}

// keys() -> table
func bucketKeys(L *lua.LState) int {
	bucket := checkBucket(L, 1)

	tbl := L.NewTable()
	keys, err := bucket.Keys()
	if err != nil {
		log.Warn().Err(err).Str("bucket", bucket.Name()).Msg("Failed to list keys")
	}
	for i, key := range keys {
		tbl.RawSetInt(i+1, lua.LString(key))
	}

	L.Push(tbl)
	return 1
}

// clear()
func bucketClear(L *lua.LState) int {
	bucket := checkBucket(L, 1)
	if err := bucket.Clear(); err != nil {
		log.Warn().Err(err).Str("bucket", bucket.Name()).Msg("Failed to clear bucket")
	}
	return 0
}
