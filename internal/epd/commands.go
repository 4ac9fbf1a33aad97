package epd

// FPC-A005 command set. The panel is a UC8159-class 7-color controller;
// byte values are fixed by the datasheet.
const (
	cmdPanelSetting           = 0x00
	cmdPowerSetting           = 0x01
	cmdPowerOff               = 0x02
	cmdPowerOffSequence       = 0x03
	cmdPowerOn                = 0x04
	cmdPowerOnMeasure         = 0x05
	cmdBoosterSoftStart       = 0x06
	cmdDeepSleep              = 0x07
	cmdDataStartTransmission1 = 0x10
	cmdDataStop               = 0x11
	cmdDisplayRefresh         = 0x12
	cmdImageProcess           = 0x13
	cmdLUTForVCOM             = 0x20
	cmdPLLControl             = 0x30
	cmdTemperatureCalibration = 0x40
	cmdTemperatureSelection   = 0x41
	cmdVCOMDataInterval       = 0x50
	cmdLowPowerDetection      = 0x51
	cmdTCONSetting            = 0x60
	cmdTCONResolution         = 0x61
	cmdSPIFlashControl        = 0x65
	cmdRevision               = 0x70
	cmdGetStatus              = 0x71
	cmdAutoMeasurementVCOM    = 0x80
	cmdReadVCOM               = 0x81
	cmdVCMDCSetting           = 0x82
	cmdPartialWindow          = 0x90
	cmdPartialIn              = 0x91
	cmdPartialOut             = 0x92
	cmdProgramMode            = 0xA0
	cmdActiveProgramming      = 0xA1
	cmdReadOTP                = 0xA2
	cmdPowerSaving            = 0xE3
)

// deepSleepCheck is the parameter byte the deep-sleep command requires.
const deepSleepCheck = 0xA5
