// Package config implements the Config Store (C1): a process-wide,
// single-threaded typed key→value repository for the ~80 adapter settings
// that every other component reads (AT-command state, timing overrides,
// CAN filter/mask/header overrides, protocol selection). It is grounded on
// original_source/src/adapter/adaptertypes.h's AdapterConfig/ByteArray, and
// on the teacher's od_variable.go for the typed-encode-over-ini.v1 idiom.
package config

// Property names one setting. The enum mirrors the original firmware's
// AT_Requests exactly, split here into three Go types by underlying value
// shape instead of three numeric ranges, since Go's type system can make
// "which table does this belong to" a compile-time property instead of a
// runtime range check.
type BoolProperty int

const (
	ParAdptvTim0 BoolProperty = iota
	ParAdptvTim1
	ParAdptvTim2
	ParAllowLong
	ParAutoReceive
	ParBufferDump
	ParBypassInit
	ParCalibrateVolt
	ParCanCAF
	ParCanDLC
	ParCanFlowControl
	ParCanSendRTR
	ParCanShowStatus
	ParCanSilentMode
	ParCanTimeoutMlt
	ParCanValidateDLC
	ParChipCopyright
	ParDescribeProtocolN
	ParDescribeProtocol
	ParDummy
	ParEcho
	ParFastInit
	ParForgetEvents
	ParGetSerial
	ParHeaderShow
	ParInfo
	ParInFrameResponse
	ParIsoBaudrate
	ParJ1939DM1Monitor
	ParJ1939Fmt
	ParJ1939Header
	ParJ1939Monitor
	ParJ1939TimeoutMlt
	ParKwCheck
	ParKwDisplay
	ParLinefeed
	ParLowPowerMode
	ParMemory
	ParProtocolClose
	ParReadVolt
	ParResetCPU
	ParResponses
	ParSetDefault
	ParSlowInit
	ParSpaces
	ParStdSearchMode
	ParTryProtocol
	ParUseAutoSP
	ParVersion
	ParWarmstart
	ParWiringTest
)

type IntProperty int

const (
	ParCanCFCPA IntProperty = iota
	ParCanFlowCtrlMode
	ParCanSetAddress
	ParCanTesterAddress
	ParIsoInitAddress
	ParProtocol
	ParReceiveAddress
	ParReceiveFilter
	ParSetBaudrate
	ParTimeout
	ParTryBaudrate
	ParVpwSpeed
	ParWakeupVal
)

type BytesProperty int

const (
	ParCanExt BytesProperty = iota
	ParCanFilter
	ParCanFlowCtrlData
	ParCanFlowCtrlHeader
	ParCanMask
	ParCanPriorityBits
	ParHeaderBytes
	ParTesterAddress
	ParUserB
	ParWmHeader
)
