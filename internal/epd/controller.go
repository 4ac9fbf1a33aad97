package epd

import "time"

// controller abstracts the command/data/busy surface of the panel so the
// protocol sequences below can be exercised against a fake in tests.
type controller interface {
	sendCommand(cmd byte) error
	sendData(data []byte) error
	waitReady(timeout time.Duration) error
}

// configurePanel runs the power-on configuration sequence: power setting,
// power on (with a bounded ready wait), panel setting, resolution and VCOM
// DC level. The caller must have pulsed the hardware reset line first.
func configurePanel(ctrl controller, opts *Opts) error {
	if err := ctrl.sendCommand(cmdPowerSetting); err != nil {
		return err
	}
	if err := ctrl.sendData([]byte{0x07, 0x07, 0x3F, 0x3F}); err != nil {
		return err
	}

	if err := ctrl.sendCommand(cmdPowerOn); err != nil {
		return err
	}
	if err := ctrl.waitReady(opts.PowerTimeout); err != nil {
		return err
	}

	if err := ctrl.sendCommand(cmdPanelSetting); err != nil {
		return err
	}
	if err := ctrl.sendData([]byte{0x1F}); err != nil {
		return err
	}

	if err := ctrl.sendCommand(cmdTCONResolution); err != nil {
		return err
	}
	res := []byte{
		byte(opts.Width >> 8), byte(opts.Width),
		byte(opts.Height >> 8), byte(opts.Height),
	}
	if err := ctrl.sendData(res); err != nil {
		return err
	}

	if err := ctrl.sendCommand(cmdVCMDCSetting); err != nil {
		return err
	}
	return ctrl.sendData([]byte{0x0E})
}

// refreshPanel transmits the packed frame and triggers a display refresh,
// then waits out the physical settling time (tens of seconds).
func refreshPanel(ctrl controller, frame []byte, opts *Opts) error {
	if err := ctrl.sendCommand(cmdDataStartTransmission1); err != nil {
		return err
	}
	if err := ctrl.sendData(frame); err != nil {
		return err
	}
	if err := ctrl.sendCommand(cmdDisplayRefresh); err != nil {
		return err
	}
	return ctrl.waitReady(opts.RefreshTimeout)
}

// sleepPanel powers the panel off and puts it in deep sleep. Only a
// hardware reset wakes it afterwards.
func sleepPanel(ctrl controller, opts *Opts) error {
	if err := ctrl.sendCommand(cmdPowerOff); err != nil {
		return err
	}
	if err := ctrl.waitReady(opts.PowerTimeout); err != nil {
		return err
	}
	if err := ctrl.sendCommand(cmdDeepSleep); err != nil {
		return err
	}
	return ctrl.sendData([]byte{deepSleepCheck})
}

// wakePanel powers the panel back on after a hardware reset pulse.
func wakePanel(ctrl controller, opts *Opts) error {
	if err := ctrl.sendCommand(cmdPowerOn); err != nil {
		return err
	}
	return ctrl.waitReady(opts.PowerTimeout)
}
