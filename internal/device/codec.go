package device

// CommandLength is the fixed size of every wire command. The controller
// accepts nothing shorter and ignores nothing longer.
const CommandLength = 64

const (
	classTemperature = 0x02
	classWake        = 0x08

	wakeSubCommand = 0x01
	gpuSubCommand  = 0x20

	gpuTempMin = 0
	gpuTempMax = 100

	// The CPU display encodes temperature as (t-16)*2. The controller
	// treats byte value 0 specially, so the encoded byte is floored at 1.
	cpuFormulaBase = 16
	cpuFormulaCeil = 90
	cpuByteMin     = 1
	cpuByteMax     = 255
)

// Command is a single 64-byte wire command for the display controller.
type Command [CommandLength]byte

// Bytes returns the command as a slice suitable for a HID write.
func (c Command) Bytes() []byte {
	return c[:]
}

// WakeCommand returns the command that resets the display's sleep timer.
func WakeCommand() Command {
	var cmd Command
	cmd[0] = classWake
	cmd[1] = wakeSubCommand

	return cmd
}

// GPUCommand encodes a GPU temperature. The display maps the value
// directly, so the temperature is clamped to [0, 100].
func GPUCommand(temp int) Command {
	var cmd Command
	cmd[0] = classTemperature
	cmd[1] = gpuSubCommand
	cmd[2] = byte(clamp(temp, gpuTempMin, gpuTempMax))

	return cmd
}

// CPUCommand encodes a CPU temperature using the controller's
// (t-16)*2 mapping, with the result floored at 1.
func CPUCommand(temp int) Command {
	raw := (clamp(temp, cpuFormulaBase, cpuFormulaCeil) - cpuFormulaBase) * 2

	var cmd Command
	cmd[0] = classTemperature
	cmd[1] = byte(clamp(raw, cpuByteMin, cpuByteMax))

	return cmd
}

func clamp(value, minValue, maxValue int) int {
	if value < minValue {
		return minValue
	}
	if value > maxValue {
		return maxValue
	}

	return value
}
