package constants

import (
	"time"
)

// Game item limits
const (
	// AppID - Steam application id of the game whose inventory is managed
	AppID = 730

	// InventoryItemLimit - maximum number of items the game inventory can hold
	// Trade-protected items do not count toward this limit.
	InventoryItemLimit = 1000

	// StorageUnitItemLimit - maximum number of items a single storage unit can hold
	StorageUnitItemLimit = 1000

	// StorageUnitDefIndex - definition index identifying storage unit items
	StorageUnitDefIndex = 1201

	// MaxPurchaseQuantity - maximum quantity accepted by a single store purchase
	MaxPurchaseQuantity = 20

	// StickerMaxCount - number of sticker slots on an item
	StickerMaxCount = 5

	// KeychainMaxCount - number of keychain (charm) slots on an item
	KeychainMaxCount = 1

	// SeedMin and SeedMax bound the pattern seed filter inputs
	SeedMin = 0
	SeedMax = 100000

	// FloatMin and FloatMax bound the wear filter inputs
	FloatMin = 0.0
	FloatMax = 1.0
)

// Table virtualization
const (
	// RowHeight - height of a single rendered row in layout units
	RowHeight = 69

	// BufferRows - rows materialized above and below the viewport
	BufferRows = 3

	// ViewportFraction - share of the viewport height used for table rows
	ViewportFraction = 0.66

	// SpacerPadding - extra scroll height reserved below the last row
	SpacerPadding = 31
)

// Batch transfer tuning
const (
	// TransferConcurrency - default number of concurrent store/retrieve calls
	TransferConcurrency = 6

	// MaxConcurrency - upper bound for transfer.concurrency and the connection pool
	MaxConcurrency = 32

	// TransferDispatchDelay - delay between dispatching two transfer calls
	TransferDispatchDelay = time.Second / TransferConcurrency

	// TransferMaxAttempts - attempts per item before a batch is aborted
	TransferMaxAttempts = 3

	// TransferBackoffMin and TransferBackoffMax bound the random sleep after a timeout
	TransferBackoffMin = 1000 * time.Millisecond
	TransferBackoffMax = 2000 * time.Millisecond

	// TransferSettleDelay - delay before dismissing progress after a batch completes
	TransferSettleDelay = 1000 * time.Millisecond

	// WorkerPollInterval - how often the task queue checks for free capacity
	WorkerPollInterval = 50 * time.Millisecond
)

// Storage unit loading
const (
	// CrateOpenAttempts - attempts to fetch the contents of one storage unit
	CrateOpenAttempts = 3

	// CrateOpenDelay - pause after each successful storage unit fetch
	CrateOpenDelay = 2 * time.Second

	// InterfaceStatusPollInterval - poll interval while waiting for the game interface
	InterfaceStatusPollInterval = time.Second

	// StatusPollInterval - interval of the background status poller used by open tables
	StatusPollInterval = 5 * time.Second
)

// Remote command service defaults
const (
	// DefaultASFServer - default IPC server address
	DefaultASFServer = "http://127.0.0.1"

	// DefaultASFPort - default IPC port
	DefaultASFPort = 1242

	// ASFRatePerSec - sustained request rate toward the IPC server
	ASFRatePerSec = 10.0

	// ASFBurstCapacity - request burst allowed toward the IPC server
	ASFBurstCapacity = 20.0

	// ASFRequestTimeout - per-request timeout; long storage unit operations stay below it
	ASFRequestTimeout = 2 * time.Minute

	// ASFConnectionRetries - retries for connection-level failures only
	ASFConnectionRetries = 2
)

// HTTP transport
const (
	HTTPDialTimeout           = 30 * time.Second
	HTTPDialKeepAlive         = 30 * time.Second
	HTTPIdleConnTimeout       = 90 * time.Second
	HTTPTLSHandshakeTimeout   = 30 * time.Second
	HTTPExpectContinueTimeout = 1 * time.Second
)

// Event bus configuration
const (
	// EventBusDefaultBuffer - default buffer size for event bus channels
	EventBusDefaultBuffer = 256

	// EventBusMaxBuffer - maximum buffer size for event bus channels
	EventBusMaxBuffer = 4096
)

// Logging
const (
	// ErrorHistorySize - number of reported errors kept in memory
	ErrorHistorySize = 200

	LogFileMaxSizeMB  = 10
	LogFileMaxBackups = 5
	LogFileMaxAgeDays = 30
)
