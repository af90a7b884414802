// Package memory provides in-process storage for sessionguard.
//
// SessionStore owns session deadlines and reports every session it drops,
// whether by lazy expiry on read, by the background sweeper or by explicit
// invalidation. AccountStore keeps registered accounts with a unique
// username index. Both are built on the sharded maps in pkg/cmap.
package memory
