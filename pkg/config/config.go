package config

import "time"

// Server defaults
const (
	DefaultPort         = "8080"
	DefaultMaxStorageGB = 1
	DefaultMaxMemoryMB  = 48
	DefaultDataDir      = "./data"
	ShutdownTimeout     = 30 * time.Second
)

// Storage backends
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendMySQL  = "mysql"
)

// Maintenance intervals
const (
	BadgerGCInterval     = 10 * time.Minute
	StorageCheckInterval = 1 * time.Minute
)

// Request timeouts
const (
	QueryTimeout  = 10 * time.Second
	StatsTimeout  = 5 * time.Second
	ExportTimeout = 5 * time.Minute
	LoadTimeout   = 30 * time.Minute
)

// Request body limits
const (
	MaxLoadBodyBytes     = 512 << 20
	MaxFragmentBodyBytes = 512 << 20
)

// Load defaults
const (
	DefaultProgressEvery = 10000
)

// MySQL defaults
const (
	DefaultMySQLHost  = "127.0.0.1"
	DefaultMySQLPort  = 3306
	DefaultMySQLTable = "title_basics"
)

// WebSocket configuration
const (
	WSReadBufferSize  = 1024
	WSWriteBufferSize = 1024
	WSBroadcastBuffer = 256
	WSChannelBuffer   = 10
	WSWriteDeadline   = 10 * time.Second
	WSReadDeadline    = 60 * time.Second
	WSPingInterval    = 30 * time.Second
)
