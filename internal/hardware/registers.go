package hardware

// Register addresses and bits of the GL846/GL845 ASIC.
const (
	Reg01        Register = 0x01
	Reg01Scan    byte     = 0x01
	Reg01Shdarea byte     = 0x02
	Reg01Dvdset  byte     = 0x20

	Reg02        Register = 0x02
	Reg02Mtrrev  byte     = 0x04
	Reg02Fastfed byte     = 0x08
	Reg02Mtrpwr  byte     = 0x10
	Reg02Agohome byte     = 0x20
	Reg02Acdcdis byte     = 0x40
	Reg02Nothome byte     = 0x80

	Reg03        Register = 0x03
	Reg03Lamppwr byte     = 0x10
	Reg03Aveenb  byte     = 0x40

	Reg04        Register = 0x04
	Reg04Feset   byte     = 0x03
	Reg04Filter  byte     = 0x0c
	Reg04Afemod  byte     = 0x30
	Reg04Bitset  byte     = 0x40
	Reg04Lineart byte     = 0x80

	Reg05        Register = 0x05
	Reg05Gmmenb  byte     = 0x08
	Reg05Dpihw   byte     = 0xc0

	Reg06        Register = 0x06
	Reg06Gain4   byte     = 0x08
	Reg08        Register = 0x08
	Reg08CISLine byte     = 0x01

	Reg0B        Register = 0x0b
	Reg0BDramsel byte     = 0x07
	Reg0BEnbdram byte     = 0x08

	Reg0C       Register = 0x0c
	Reg0CCcdlmt byte     = 0x0f

	Reg0D         Register = 0x0d
	Reg0DClrlncnt byte     = 0x01
	Reg0DClrmcnt  byte     = 0x02

	Reg0E Register = 0x0e
	Reg0F Register = 0x0f // start action

	RegExpR Register = 0x10
	RegExpG Register = 0x12
	RegExpB Register = 0x14

	Reg1C       Register = 0x1c
	Reg1CTgtime byte     = 0x07
	Reg1E       Register = 0x1e

	RegStepNo   Register = 0x21
	RegFwdStep  Register = 0x22
	RegBwdStep  Register = 0x23
	RegFastNo   Register = 0x24
	RegLinCnt   Register = 0x25 // 24-bit
	RegDPISet   Register = 0x2c
	RegBWHi     Register = 0x2e
	RegBWLo     Register = 0x2f
	RegStrPixel Register = 0x30
	RegEndPixel Register = 0x32
	RegDummy    Register = 0x34
	RegMaxWD    Register = 0x35 // 24-bit
	RegLPeriod  Register = 0x38
	RegFEDHi    Register = 0x3a
	RegFEDLo    Register = 0x3b
	RegFeedL    Register = 0x3d // 24-bit

	Reg40        Register = 0x40
	Reg40Dataenb byte     = 0x01
	Reg40Motmflg byte     = 0x02
	Reg40Chkver  byte     = 0x10

	Reg41         Register = 0x41 // status
	Reg41Motorenb byte     = 0x01
	Reg41Febusy   byte     = 0x02
	Reg41Homesnr  byte     = 0x08
	Reg41Feedfsh  byte     = 0x20
	Reg41Bufempty byte     = 0x40

	RegFEAddr  Register = 0x51
	Reg5E      Register = 0x5e
	RegFMovDec Register = 0x5f
	RegZ1Mod   Register = 0x60 // 24-bit
	RegZ2Mod   Register = 0x63 // 24-bit
	Reg67      Register = 0x67
	Reg68      Register = 0x68
	RegFShDec  Register = 0x69
	RegFMovNo  Register = 0x6a
	Reg6B      Register = 0x6b
	Reg6C      Register = 0x6c
	Reg6D      Register = 0x6d // buttons, active low
	Reg6E      Register = 0x6e
	Reg6F      Register = 0x6f
	Reg7E      Register = 0x7e

	Reg87       Register = 0x87
	Reg87Ledadd byte     = 0x04

	Reg9D   Register = 0x9d
	RegA6   Register = 0xa6
	RegA7   Register = 0xa7
	RegA8   Register = 0xa8
	RegA9   Register = 0xa9
	RegFEDCnt Register = 0xab

	RegShadingBase Register = 0xd0 // 0xd0-0xd2, one per channel
	RegMemLayout   Register = 0xe0 // 0xe0-0xe9
	RegF8          Register = 0xf8
)

// Bit positions of the step type inside the Z1MOD/Z2MOD 24-bit values.
const (
	Z1StepSelShift = 16 + 5
	Z2StepSelShift = 16 + 5
)

// Home sensor GPIO bits written before reading the home sensor.
const HomeSensorGPIO byte = 0x41

// Button masks in Reg6D.
const (
	ButtonScan  byte = 0x01
	ButtonFile  byte = 0x02
	ButtonEmail byte = 0x04
	ButtonCopy  byte = 0x08
)

// AHB memory map.
const (
	AHBBase        uint32 = 0x10000000
	SlopeSlotSize  uint32 = 0x4000
	ShadingPageLen uint32 = 8192
)

// SlopeTableAddr returns the AHB address of a slope-table slot.
func SlopeTableAddr(slot int) uint32 {
	return AHBBase + SlopeSlotSize*uint32(slot)
}

// ShadingAddr converts a shading base register value into an AHB address.
func ShadingAddr(base byte) uint32 {
	return uint32(base)*ShadingPageLen + AHBBase
}

// DPIHWBits encodes a hardware resolution into the DPIHW field of Reg05.
func DPIHWBits(dpi int) byte {
	switch {
	case dpi <= 600:
		return 0x00
	case dpi <= 1200:
		return 0x40
	case dpi <= 2400:
		return 0x80
	default:
		return 0xc0
	}
}

// Colour filter patterns for the FILTER/AFEMOD field of Reg04.
const (
	FilterRedBits   byte = 0x24
	FilterGreenBits byte = 0x28
	FilterBlueBits  byte = 0x2c
	FilterMonoBits  byte = 0x20
)
