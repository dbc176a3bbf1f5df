package schema

// Roles a port or interconnect may declare.
const (
	RoleMaster = "master"
	RoleSlave  = "slave"
	RoleBi     = "bi"
)

// Group types, distinguishing directly instantiated register groups from
// macro templates that are only placed through a !Macro entry.
const (
	GroupRegister = "register"
	GroupMacro    = "macro"
)

// Field types.
const (
	FieldUnsigned = "U"
	FieldSigned   = "S"
	FieldCommand  = "CMD_DEF"
)

// Access modes for registers.
const (
	AccessNone        = ""
	AccessReadWrite   = "RW"
	AccessReadOnly    = "RO"
	AccessWriteOnly   = "WO"
	AccessWriteSet    = "WS"
	AccessWriteClear  = "WC"
	AccessActiveWrite = "AW"
	AccessActiveRead  = "AR"
	AccessActiveBoth  = "ARW"
)

// Register locations.
const (
	LocationCore     = "core"
	LocationInternal = "internal"
	LocationWrapper  = "wrapper"
)

// Well-known option keys.
const (
	OptionNoAutoClkRst = "no_auto_clk_rst"
	OptionNoClkRst     = "no_clk_rst"
	OptionAutoClk      = "auto_clk"
	OptionAutoRst      = "auto_rst"
	OptionByte         = "byte"
	OptionEvent        = "event"
	OptionHasMode      = "has_mode"
	OptionHasLevel     = "has_level"
	OptionNoLevel      = "no_level"
	OptionSetClear     = "setclear"
	OptionImp          = "imp"
	OptionDecoder      = "decoder"
)

var accessAliases = map[string]string{
	"WR": AccessReadWrite,
	"R":  AccessReadOnly,
	"W":  AccessWriteOnly,
}

// NormalizeAccess maps access-mode aliases (WR, R, W) onto their canonical
// spelling and upper-cases the rest.
func NormalizeAccess(access string) string {
	clean := normalizeUpper(access)
	if canonical, ok := accessAliases[clean]; ok {
		return canonical
	}
	return clean
}
