package opencl

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"unsafe"

	"github.com/achilleasa/gopencl/v1.2/cl"
)

const (
	platformBufferSize = 100
	deviceBufferSize   = 100
	dataBufferSize     = 1024
)

type DeviceType uint8

// Supported device types.
const (
	CpuDevice DeviceType = 1 << iota
	GpuDevice
	OtherDevice
	AllDevices DeviceType = 0xFF
)

var indentRegex = regexp.MustCompile("(?m)^")

func (dt DeviceType) String() string {
	switch dt {
	case CpuDevice:
		return "CPU"
	case GpuDevice:
		return "GPU"
	case OtherDevice:
		return "Other"
	}
	return fmt.Sprintf("DeviceType(%d)", uint8(dt))
}

// Parse a device type selector such as "cpu", "gpu" or "all".
func ParseDeviceType(name string) (DeviceType, error) {
	switch strings.ToLower(name) {
	case "cpu":
		return CpuDevice, nil
	case "gpu":
		return GpuDevice, nil
	case "all", "":
		return AllDevices, nil
	}
	return 0, fmt.Errorf("opencl: unknown device type %q", name)
}

// Information about a system's opencl platform and supported devices.
type PlatformInfo struct {
	Profile    string
	Version    string
	Name       string
	Vendor     string
	Extensions string
	Devices    []*Device
}

func (pl PlatformInfo) String() string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf,
		"Version:    %s\nName:       %s\nVendor:     %s\nExtensions: %s\nDevices:\n",
		pl.Version,
		pl.Name,
		pl.Vendor,
		pl.Extensions,
	)

	for dIdx, d := range pl.Devices {
		fmt.Fprintf(&buf, "  Device %02d:\n", dIdx)
		buf.WriteString(indentRegex.ReplaceAllString(d.String(), "    "))
		buf.WriteString("\n\n")
	}

	return buf.String()
}

// Get information about supported opencl platforms and devices.
func GetPlatformInfo() ([]PlatformInfo, error) {
	pids := make([]cl.PlatformID, platformBufferSize)
	pidCount := uint32(0)
	errCode := cl.GetPlatformIDs(uint32(len(pids)), &pids[0], &pidCount)
	if errCode != cl.SUCCESS {
		// Systems without an ICD loader report no platforms
		if errCode == -1001 {
			return nil, nil
		}
		return nil, fmt.Errorf("opencl: could not enumerate platforms (error: %s; code %d)", ErrorName(errCode), errCode)
	}

	data := make([]byte, dataBufferSize)
	dataLen := uint64(0)
	dataStr := func() string {
		if dataLen == 0 {
			return ""
		}
		return string(data[0 : dataLen-1])
	}

	infoList := make([]PlatformInfo, int(pidCount))
	for pIdx := 0; pIdx < int(pidCount); pIdx++ {
		info := &infoList[pIdx]
		info.Devices = make([]*Device, 0)

		dataLen = 0
		cl.GetPlatformInfo(pids[pIdx], cl.PLATFORM_PROFILE, dataBufferSize, unsafe.Pointer(&data[0]), &dataLen)
		info.Profile = dataStr()

		dataLen = 0
		cl.GetPlatformInfo(pids[pIdx], cl.PLATFORM_VERSION, dataBufferSize, unsafe.Pointer(&data[0]), &dataLen)
		info.Version = dataStr()

		dataLen = 0
		cl.GetPlatformInfo(pids[pIdx], cl.PLATFORM_NAME, dataBufferSize, unsafe.Pointer(&data[0]), &dataLen)
		info.Name = dataStr()

		dataLen = 0
		cl.GetPlatformInfo(pids[pIdx], cl.PLATFORM_VENDOR, dataBufferSize, unsafe.Pointer(&data[0]), &dataLen)
		info.Vendor = dataStr()

		dataLen = 0
		cl.GetPlatformInfo(pids[pIdx], cl.PLATFORM_EXTENSIONS, dataBufferSize, unsafe.Pointer(&data[0]), &dataLen)
		info.Extensions = dataStr()

		for _, devType := range []DeviceType{CpuDevice, GpuDevice} {
			devices := make([]cl.DeviceId, deviceBufferSize)
			deviceCount := uint32(0)
			if devType == CpuDevice {
				cl.GetDeviceIDs(pids[pIdx], cl.DEVICE_TYPE_CPU, uint32(deviceBufferSize), &devices[0], &deviceCount)
			} else {
				cl.GetDeviceIDs(pids[pIdx], cl.DEVICE_TYPE_GPU, uint32(deviceBufferSize), &devices[0], &deviceCount)
			}
			for dIdx := 0; dIdx < int(deviceCount); dIdx++ {
				dataLen = 0
				cl.GetDeviceInfo(devices[dIdx], cl.DEVICE_NAME, dataBufferSize, unsafe.Pointer(&data[0]), &dataLen)
				info.Devices = append(info.Devices, newDevice(dataStr(), devices[dIdx], devType))
			}
		}

		for _, dev := range info.Devices {
			if err := dev.detectSpeed(); err != nil {
				return nil, err
			}
		}
	}

	return infoList, nil
}

// Scan all available opencl platforms and select devices that match the given query.
func SelectDevices(typeMask DeviceType, matchName string) ([]*Device, error) {
	platforms, err := GetPlatformInfo()
	if err != nil {
		return nil, err
	}
	list := make([]*Device, 0)
	for _, p := range platforms {
		for _, d := range p.Devices {
			if d.Type&typeMask != d.Type {
				continue
			}
			if matchName != "" && !strings.Contains(d.Name(), matchName) {
				continue
			}
			list = append(list, d)
		}
	}
	return list, nil
}
