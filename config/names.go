package config

// boolNames/intNames/bytesNames give each property the name it appears
// under in a profile ini file, in exactly the declaration order of the
// property constants in property.go.
var boolNames = []string{
	"ADPTV_TIM0", "ADPTV_TIM1", "ADPTV_TIM2", "ALLOW_LONG", "AUTO_RECEIVE",
	"BUFFER_DUMP", "BYPASS_INIT", "CALIBRATE_VOLT", "CAN_CAF", "CAN_DLC",
	"CAN_FLOW_CONTROL", "CAN_SEND_RTR", "CAN_SHOW_STATUS", "CAN_SILENT_MODE",
	"CAN_TIMEOUT_MLT", "CAN_VALIDATE_DLC", "CHIP_COPYRIGHT",
	"DESCRIBE_PROTOCOL_N", "DESCRIBE_PROTOCOL", "DUMMY", "ECHO", "FAST_INIT",
	"FORGET_EVENTS", "GET_SERIAL", "HEADER_SHOW", "INFO", "INFRAME_RESPONSE",
	"ISO_BAUDRATE", "J1939_DM1_MONITOR", "J1939_FMT", "J1939_HEADER",
	"J1939_MONITOR", "J1939_TIMEOUT_MLT", "KW_CHECK", "KW_DISPLAY",
	"LINEFEED", "LOW_POWER_MODE", "MEMORY", "PROTOCOL_CLOSE", "READ_VOLT",
	"RESET_CPU", "RESPONSES", "SET_DEFAULT", "SLOW_INIT", "SPACES",
	"STD_SEARCH_MODE", "TRY_PROTOCOL", "USE_AUTO_SP", "VERSION", "WARMSTART",
	"WIRING_TEST",
}

var intNames = []string{
	"CAN_CFCPA", "CAN_FLOW_CTRL_MODE", "CAN_SET_ADDRESS", "CAN_TESTER_ADDRESS",
	"ISO_INIT_ADDRESS", "PROTOCOL", "RECEIVE_ADDRESS", "RECEIVE_FILTER",
	"SET_BAUDRATE", "TIMEOUT", "TRY_BAUDRATE", "VPW_SPEED", "WAKEUP_VAL",
}

var bytesNames = []string{
	"CAN_EXT", "CAN_FILTER", "CAN_FLOW_CTRL_DATA", "CAN_FLOW_CTRL_HEADER",
	"CAN_MASK", "CAN_PRIORITY_BITS", "HEADER_BYTES", "TESTER_ADDRESS",
	"USER_B", "WM_HEADER",
}

func (p BoolProperty) String() string {
	if int(p) < 0 || int(p) >= len(boolNames) {
		return "UNKNOWN_BOOL_PROPERTY"
	}
	return boolNames[p]
}

func (p IntProperty) String() string {
	if int(p) < 0 || int(p) >= len(intNames) {
		return "UNKNOWN_INT_PROPERTY"
	}
	return intNames[p]
}

func (p BytesProperty) String() string {
	if int(p) < 0 || int(p) >= len(bytesNames) {
		return "UNKNOWN_BYTES_PROPERTY"
	}
	return bytesNames[p]
}
