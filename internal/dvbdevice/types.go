package dvbdevice

// Property tags used in the DVB v5 property-based tuning API
// (linux/dvb/frontend.h DTV_*).
const (
	DTV_UNDEFINED      = 0
	DTV_TUNE           = 1
	DTV_CLEAR          = 2
	DTV_FREQUENCY      = 3
	DTV_MODULATION     = 4
	DTV_BANDWIDTH_HZ   = 5
	DTV_INVERSION      = 6
	DTV_DELIVERY_SYSTEM = 17
	DTV_SYMBOL_RATE    = 8
	DTV_INNER_FEC      = 9
	DTV_VOLTAGE        = 10
	DTV_TONE           = 11
	DTV_ROLLOFF        = 13
	DTV_CODE_RATE_HP   = 36
	DTV_CODE_RATE_LP   = 37
	DTV_GUARD_INTERVAL = 38
	DTV_TRANSMISSION_MODE = 39
	DTV_HIERARCHY      = 40
)

// fe_delivery_system values. Index 4 is reserved for SYS_DSS, unused here.
const (
	SYS_UNDEFINED = 0
	SYS_DVBC_ANNEX_A = 1
	SYS_DVBT      = 3
	SYS_DVBS      = 5
	SYS_DVBS2     = 6
	SYS_DVBT2     = 16
)

// fe_sec_voltage.
const (
	SEC_VOLTAGE_13 = 0
	SEC_VOLTAGE_18 = 1
	SEC_VOLTAGE_OFF = 2
)

// fe_sec_tone_mode.
const (
	SEC_TONE_ON  = 0
	SEC_TONE_OFF = 1
)

// fe_sec_mini_cmd, used for DiSEqC tone burst.
const (
	SEC_MINI_A = 0
	SEC_MINI_B = 1
)

// fe_status bits.
const (
	FE_HAS_SIGNAL  = 0x01
	FE_HAS_CARRIER = 0x02
	FE_HAS_VITERBI = 0x04
	FE_HAS_SYNC    = 0x08
	FE_HAS_LOCK    = 0x10
	FE_TIMEDOUT    = 0x20
	FE_REINIT      = 0x40
)

// fe_caps bits relevant to this engine.
const (
	FE_CAN_2G_MODULATION = 0x10000000
)

// fe_spectral_inversion.
const (
	INVERSION_OFF  = 0
	INVERSION_ON   = 1
	INVERSION_AUTO = 2
)

// fe_code_rate.
const (
	FEC_NONE = 0
	FEC_1_2  = 1
	FEC_2_3  = 2
	FEC_3_4  = 3
	FEC_4_5  = 4
	FEC_5_6  = 5
	FEC_6_7  = 6
	FEC_7_8  = 7
	FEC_8_9  = 8
	FEC_AUTO = 9
	FEC_3_5  = 10
	FEC_9_10 = 11
)

// fe_rolloff.
const (
	ROLLOFF_35   = 0
	ROLLOFF_20   = 1
	ROLLOFF_25   = 2
	ROLLOFF_AUTO = 3
)

// fe_modulation, a subset covering the constellations this engine's
// config surface can select.
const (
	QPSK     = 0
	QAM_16   = 1
	QAM_32   = 2
	QAM_64   = 3
	QAM_128  = 4
	QAM_256  = 5
	QAM_AUTO = 6
	VSB_8    = 7
	VSB_16   = 8
	PSK_8    = 9
	APSK_16  = 10
	APSK_32  = 11
	DQPSK    = 12
)

// fe_bandwidth, the legacy (v3) OFDM bandwidth enum.
const (
	BANDWIDTH_8_MHZ = 0
	BANDWIDTH_7_MHZ = 1
	BANDWIDTH_6_MHZ = 2
	BANDWIDTH_AUTO  = 3
)

// fe_guard_interval.
const (
	GUARD_INTERVAL_1_32 = 0
	GUARD_INTERVAL_1_16 = 1
	GUARD_INTERVAL_1_8  = 2
	GUARD_INTERVAL_1_4  = 3
	GUARD_INTERVAL_AUTO = 4
)

// fe_transmit_mode.
const (
	TRANSMISSION_MODE_2K   = 0
	TRANSMISSION_MODE_8K   = 1
	TRANSMISSION_MODE_AUTO = 2
	TRANSMISSION_MODE_4K   = 3
)

// fe_hierarchy.
const (
	HIERARCHY_NONE = 0
	HIERARCHY_1    = 1
	HIERARCHY_2    = 2
	HIERARCHY_4    = 3
	HIERARCHY_AUTO = 4
)

// DTVProperty is one element of a property-based tune/get request.
type DTVProperty struct {
	Cmd      uint32
	Reserved [3]uint32
	Data     uint32
	// The kernel's dtv_property carries a result struct after Data for
	// GET_PROPERTY responses; this engine only issues scalar SET/TUNE
	// properties, so it is omitted here.
}

// DTVProperties is the property vector passed to FE_SET_PROPERTY /
// FE_GET_PROPERTY.
type DTVProperties struct {
	Num   uint32
	Props []DTVProperty
}

// FrontendInfo mirrors struct dvb_frontend_info field for field, so that
// FE_GET_INFO fills Caps at the kernel's offset. This engine reads only
// Caps.
type FrontendInfo struct {
	Name            [128]byte
	Type            uint32
	FrequencyMin    uint32
	FrequencyMax    uint32
	FrequencyStepSize uint32
	FrequencyTolerance uint32
	SymbolRateMin   uint32
	SymbolRateMax   uint32
	SymbolRateTolerance uint32
	NotifierDelay   uint32
	Caps            uint32
}

// DiseqcMasterCmd mirrors struct dvb_diseqc_master_cmd.
type DiseqcMasterCmd struct {
	Msg    [6]byte
	MsgLen byte
}

// DiseqcSlaveReply mirrors struct dvb_diseqc_slave_reply.
type DiseqcSlaveReply struct {
	Msg     [4]byte
	MsgLen  byte
	Timeout int32
}

// FrontendParametersLegacy mirrors the fields of the legacy DVB v3
// tuning struct this engine uses for DVB-S/T/C.
type FrontendParametersLegacy struct {
	FrequencyHz uint32
	Inversion   uint32
	// Delivery-system-specific union fields, modeled as separate
	// named fields rather than a C union since this engine always
	// knows which variant it is filling in.
	SymbolRate   uint32 // S/C
	FEC          uint32 // S/C
	Bandwidth    uint32 // T
	CodeRateHP   uint32 // T
	CodeRateLP   uint32 // T
	Modulation   uint32 // T/C
	TransmitMode uint32 // T
	GuardInterval uint32 // T
	Hierarchy    uint32 // T
}

// FrontendEvent mirrors struct dvb_frontend_event, used to drain queued
// events before issuing a property-based tune.
type FrontendEvent struct {
	Status     uint32
	Parameters FrontendParametersLegacy
}

// PESFilterParams mirrors struct dmx_pes_filter_params.
type PESFilterParams struct {
	PID     uint16
	Input   uint32
	Output  uint32
	PESType uint32
	Flags   uint32
}

// Demux input/output/pes_type/flags values (linux/dvb/dmx.h).
const (
	DMX_IN_FRONTEND = 0
	DMX_OUT_TS_TAP  = 2
	DMX_PES_OTHER   = 20
	DMX_IMMEDIATE_START = 0x4
)

// SCTFilterParams mirrors struct dmx_sct_filter_params, used for section
// filters in case a caller wants kernel-side section filtering rather
// than raw TS-tap output (this engine defaults to TS-tap + userspace
// reassembly via the psi package, but the struct is provided for
// completeness and tests).
type SCTFilterParams struct {
	PID     uint16
	Filter  [16]byte
	Mask    [16]byte
	Mode    [16]byte
	Timeout uint32
	Flags   uint32
}
