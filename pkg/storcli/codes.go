package storcli

// VendorCode describes one documented controller status code.
type VendorCode struct {
	Kind        ErrorKind
	Short       string
	Description string
}

// Text returns the short description when the vendor has one, else the
// detailed description.
func (c VendorCode) Text() string {
	if c.Short != "" {
		return c.Short
	}
	return c.Description
}

// Named codes referenced outside the table.
const (
	CodeSuccess                        = 0
	CodeIncompleteForeignConfiguration = 59
	CodeInvalidStatus                  = 255
)

// vendorCodes is the controller status table published with the MegaRAID
// storcli reference. Codes missing from the table are undocumented.
var vendorCodes = map[int]VendorCode{
	0: {KindSuccess, "", "Command completed successfully."},
	1: {KindInvalidArguments, "", "Invalid command."},
	2: {KindInvalidArguments, "", "DCMD opcode is invalid."},
	3: {KindInvalidArguments, "", "Input parameters are invalid."},
	4: {KindInvalidArguments, "", "Invalid sequence number."},
	5: {KindUnsupported, "", "Abort is not possible for the requested command."},
	6: {KindUnknownControllerError, "", "Application 'host' code not found."},
	7: {KindBusy, "", "Application already in use - try later."},
	8: {KindUnknownControllerError, "", "Application not initialized."},
	9: {KindInvalidArguments, "", "Given array index is invalid."},
	10: {KindUnsupported, "", "Unable to add the missing drive to array, as row has no empty slots."},
	11: {KindInvalidArguments, "", "Some of the CFG resources conflict with each other or the current config."},
	12: {KindDeviceNotFound, "", "Invalid device ID / select-timeout."},
	13: {KindInvalidArguments, "", "Drive is too small for the requested operation."},
	14: {KindUnknownControllerError, "", "Flash memory allocation failed."},
	15: {KindBusy, "", "Flash download already in progress."},
	16: {KindUnknownControllerError, "", "Flash operation failed."},
	17: {KindInvalidArguments, "", "Flash image was bad."},
	18: {KindInvalidArguments, "", "Downloaded flash image is incomplete."},
	19: {KindUnknownControllerError, "", "Flash OPEN was not done."},
	20: {KindUnknownControllerError, "", "Flash sequence is not active."},
	21: {KindUnknownControllerError, "", "Flush command failed."},
	22: {KindUnsupported, "", "Specified application does not have host-resident code."},
	23: {KindBusy, "", "LD operation not possible - CC is in progress."},
	24: {KindBusy, "", "LD initialization in progress."},
	25: {KindInvalidArguments, "", "LBA is out of range."},
	26: {KindUnsupported, "", "Maximum LDs are already configured."},
	27: {KindUnknownControllerError, "", "LD is not OPTIMAL."},
	28: {KindBusy, "", "LD Rebuild is in progress."},
	29: {KindBusy, "", "LD is undergoing reconstruction."},
	30: {KindInvalidArguments, "", "LD RAID level is wrong for the requested operation."},
	31: {KindInvalidArguments, "", "Too many spares assigned."},
	32: {KindBusy, "", "Scratch memory not available, try the command again later."},
	33: {KindUnknownControllerError, "", "Error writing MFC data to SEEPROM."},
	34: {KindDeviceNotFound, "", "Required HW is missing (for example, Alarm or BBU)."},
	35: {KindDeviceNotFound, "", "Item not found."},
	36: {KindInvalidArguments, "", "LD drives are not within an enclosure."},
	37: {KindBusy, "", "PD CLEAR operation is in progress."},
	38: {KindInvalidArguments, "", "Unable to use SATA(SAS) drive to replace SAS(SATA)."},
	39: {KindUnsupported, "", "Patrol Read is disabled."},
	40: {KindInvalidArguments, "", "Given row index is invalid."},
	45: {KindUnknownControllerError, "", "SCSI command done, but non-GOOD status was received-see mf.hdr.extStatus for SCSI_STATUS."},
	46: {KindUnknownControllerError, "", "IO request for MFI_CMD_OP_PD_SCSI failed - see extStatus for DM error."},
	47: {KindBusy, "", "Matches SCSI RESERVATION_CONFLICT."},
	48: {KindUnknownControllerError, "", "One or more of the flush operations failed."},
	49: {KindUnknownControllerError, "", "Firmware real-time currently not set."},
	50: {KindUnsupported, "", "Command issues while firmware is in the wrong state (for example, GET RECON when op not active)."},
	51: {KindUnsupported, "", "LD is not OFFLINE - IO not possible."},
	52: {KindBusy, "", "Peer controller rejected request (possibly due to a resource conflict)."},
	53: {KindUnknownControllerError, "", "Unable to inform peer of communication changes (retry might be appropriate)."},
	54: {KindBusy, "", "LD reservation already in progress."},
	55: {KindUnknownControllerError, "", "I2C errors were detected."},
	56: {KindUnknownControllerError, "", "PCI errors occurred during XOR/DMA operation."},
	57: {KindUnknownControllerError, "", "Diagnostics failed, see the event log for details."},
	58: {KindBusy, "", "Unable to process command as boot messages are pending."},
	59: {KindUnknownControllerError, "Incomplete foreign configuration", "Returned in case if foreign configurations are incomplete."},
	61: {KindUnsupported, "", "Returned when a command is tried on unsupported hardware."},
	62: {KindUnsupported, "", "CC scheduling is disabled."},
	63: {KindBusy, "", "PD CopyBack operation is in progress."},
	64: {KindInvalidArguments, "", "Selected more than one PD per array."},
	65: {KindUnknownControllerError, "", "Microcode update operation failed."},
	66: {KindUnsupported, "", "Unable to process the command as the drive security feature is not enabled."},
	67: {KindInvalidArguments, "", "Controller already has a lock key."},
	68: {KindUnknownControllerError, "", "Lock key cannot be backed-up."},
	69: {KindUnknownControllerError, "", "Lock key backup cannot be verified."},
	70: {KindPermissionDenied, "", "Lock key from backup failed verification."},
	71: {KindUnsupported, "", "Rekey operation not allowed, unless controller already has a lock key."},
	72: {KindPermissionDenied, "", "Lock key is not valid, cannot authenticate."},
	73: {KindPermissionDenied, "", "Lock key from escrow cannot be used."},
	74: {KindPermissionDenied, "", "Lock key backup (pass-phrase) is required."},
	75: {KindUnsupported, "", "Secure LD exists."},
	76: {KindPermissionDenied, "", "LD secure operation is not allowed."},
	77: {KindPermissionDenied, "", "Reprovisioning is not allowed."},
	78: {KindInvalidArguments, "", "Drive security type (FDE or non-FDE) is not appropriate for the requested operation."},
	79: {KindUnsupported, "", "LD encryption type is not supported."},
	80: {KindInvalidArguments, "", "Cannot mix FDE and non-FDE drives in same array."},
	81: {KindInvalidArguments, "", "Cannot mix secure and unsecured LD in same array."},
	82: {KindPermissionDenied, "", "Secret key not allowed."},
	83: {KindUnknownControllerError, "", "Physical device errors were detected."},
	84: {KindUnknownControllerError, "", "Controller has LD cache pinned."},
	85: {KindBusy, "", "Requested operation is already in progress."},
	86: {KindBusy, "", "Another power state set operation is in progress."},
	87: {KindUnsupported, "", "Power state of device is not correct."},
	88: {KindDeviceNotFound, "", "No PD is available for patrol read."},
	89: {KindUnknownControllerError, "", "Controller reset is required."},
	90: {KindDeviceNotFound, "", "No EKM boot agent detected."},
	91: {KindUnknownControllerError, "", "No space on the snapshot repository VD."},
	92: {KindUnknownControllerError, "", "For consistency SET PiTs, some PiT creations might fail and some succeed."},
	93: {KindUnsupported, "", "Secondary iButton cannot be used and is incompatible with controller."},
	94: {KindInvalidArguments, "", "PFK does not match or cannot be applied to the controller."},
	95: {KindUnsupported, "", "Maximum allowed unconfigured (configurable) PDs exist."},
	96: {KindUnsupported, "", "IO metrics are not being collected."},
	97: {KindBusy, "", "AEC capture must be stopped before proceeding."},
	98: {KindUnsupported, "", "Unsupported level of protection information."},
	99: {KindInvalidArguments, "", "PDs in LD have incompatible EEDP types."},
	100: {KindUnsupported, "", "Request cannot be completed because protection information is not enabled."},
	101: {KindInvalidArguments, "", "PDs in LD have different block sizes."},
	102: {KindUnknownControllerError, "", "LD Cached data is present on a (this) SSCD."},
	103: {KindBusy, "", "Config sequence number mismatch."},
	104: {KindUnsupported, "", "Flash image is not supported."},
	105: {KindUnsupported, "", "Controller cannot be online-reset."},
	106: {KindUnsupported, "", "Controller booted to safe mode, command is not supported in this mode."},
	107: {KindUnknownControllerError, "", "SSC memory is unavailable to complete the operation."},
	108: {KindUnsupported, "", "Peer node is incompatible."},
	109: {KindInvalidArguments, "", "Dedicated hot spare assignment is limited to array(s) with same LDs."},
	110: {KindInvalidArguments, "", "Signed component is not part of the image."},
	111: {KindPermissionDenied, "", "Authentication failure of the signed firmware image."},
	112: {KindSuccess, "", "Flashing was ok but FW restart is not required, ex: No change in FW from current."},
	113: {KindUnsupported, "", "Firmware is in some form of restricted mode, example: passive in A/P HA mode."},
	114: {KindInvalidArguments, "", "The maximum number of entries are exceeded."},
	115: {KindBusy, "", "Cannot start the subsequent flush because the previous flush is still active."},
	116: {KindSuccess, "", "Status is ok but a reboot is need for the change to take effect."},
	117: {KindBusy, "", "Cannot perform the operation because the background operation is still in progress."},
	118: {KindUnsupported, "", "Operation is not possible."},
	119: {KindBusy, "", "Firmware update on the peer node is in progress."},
	120: {KindInvalidArguments, "", "Hidden policy is not set for all of the virtual drives in the drive group that contains this virtual drive."},
	121: {KindUnsupported, "", "Indicates that there are one or more secure system drives in the system."},
	122: {KindUnsupported, "", "Boot LD cannot be hidden."},
	123: {KindInvalidArguments, "", "The LD count is greater than the maximum transportable LD count."},
	124: {KindInvalidArguments, "", "DHSP is associated with more than one disk group. Force is needed if dcmd.mbox.b[5] is 0."},
	125: {KindUnsupported, "", "The operation not possible because the configuration has some LDs in a transport ready state."},
	126: {KindUnknownControllerError, "", "The IO request encountered a SCSI DATA UNDERRUN, MFI_HDR.length. The length is set to bytes transferred."},
	127: {KindUnsupported, "", "Firmware flash is not allowed in the current mode."},
	128: {KindUnsupported, "", "The operation is not possible because the device is in a transport ready state."},
	129: {KindUnsupported, "", "The operation is not possible because the LD is in a transport ready state."},
	130: {KindUnsupported, "", "The operation is not possible because the LD is not in a transport ready state."},
	131: {KindUnsupported, "", "The operation is not possible because the PD in a removal ready state."},
	132: {KindSuccess, "", "The status is ok, but a host reboot is required for the changes to take effect."},
	133: {KindBusy, "", "A microcode update is pending on the device."},
	134: {KindBusy, "", "A microcode update is in progress on the device."},
	135: {KindInvalidArguments, "", "There is a mismatch between the drive type and the erase option."},
	136: {KindUnsupported, "", "The operation is not possible because an automatically created configuration exists."},
	137: {KindUnsupported, "", "A secure EPD or EPD-PASSTHRU device exists."},
	138: {KindUnknownControllerError, "", "The operation is not possible because the host FRU data is invalid."},
	139: {KindUnknownControllerError, "", "The operation is not possible because the controller FRU data is invalid."},
	140: {KindDeviceNotFound, "", "The requested image not found."},
	141: {KindUnknownControllerError, "", "NVCache related error."},
	142: {KindInvalidArguments, "", "The requested LD size is less than MINIMUM SIZE LIMIT."},
	143: {KindInvalidArguments, "", "The requested drive count is invalid for this raid level."},
	144: {KindPermissionDenied, "", "An OEM-specific backplane authentication failure."},
	145: {KindDeviceNotFound, "", "The OEM-specific backplane not found."},
	146: {KindUnsupported, "", "Flashing the image is not possible because the downloaded and running firmware on the controller are same."},
	147: {KindUnsupported, "", "Unmap is not supported on the device or the controller."},
	148: {KindUnsupported, "", "The device does not support the sanitize type that is specified."},
	149: {KindDeviceNotFound, "", "A valid Snapdump is unavailable."},
	150: {KindUnsupported, "", "The Snapdump feature is not enabled."},
	151: {KindUnsupported, "", "The LD or device does not support the requested policy."},
	152: {KindUnsupported, "", "The requested operation cannot be performed because of an existing configuration."},
	153: {KindSuccess, "", "The status is ok, but a shutdown is required to take effect."},
	154: {KindUnsupported, "", "The PD cannot participate in a RAID configuration."},
	155: {KindUnsupported, "", "Secure boot needs another key slot and the eFUSE is full."},
	156: {KindBusy, "", "Clear Snapdump before proceeding."},
	157: {KindUnsupported, "", "The operation is not possible because one or more non unmap drives are used."},
	158: {KindUnsupported, "", "The firmware image will disable the firmware device re-ordering."},
	159: {KindBusy, "", "New firmware download is not allowed due to a Secure Boot pending key change."},
	160: {KindInvalidArguments, "", "DPM only supports in EXT format."},
	161: {KindUnknownControllerError, "", "The NVMe repair command failed."},
	162: {KindBusy, "", "The NVMe repair command is already in progress for this device."},
	163: {KindInvalidArguments, "", "The NVMe repair status displays there is no repair in progress for this device."},
	164: {KindPermissionDenied, "", "The imported certificate chain failed the firmware validation."},
	165: {KindPermissionDenied, "", "The contents of the specified slot cannot be altered."},
	166: {KindInvalidArguments, "", "The import initiated without an export or another import in process."},
	167: {KindBusy, "", "Another export operation is in process."},
	168: {KindUnknownControllerError, "", "The configuration page read command failed."},
	169: {KindPermissionDenied, "", "Failed to authenticate due to an invalid key pair or certificate."},
	170: {KindDeviceNotFound, "", "The certificate page read succeeded, but this page is not yet present in MPB."},
	171: {KindPermissionDenied, "", "Lock key passphrase is incorrect, the user may retry."},
	172: {KindPermissionDenied, "", "Lock key passphrase try count is exceeded, a reboot is required."},
	173: {KindBusy, "", "The requested operation is not possible because of an active reconstruction."},
	174: {KindBusy, "", "The requested operation is not possible as the firmware activation is pending."},
	175: {KindBusy, "", "The requested operation is not possible as the PD Sanitize operation is in progress."},
	255: {KindUnknownControllerError, "", "Invalid status - used for polling command completion."},
}

// LookupCode returns the documented entry for code.
func LookupCode(code int) (VendorCode, bool) {
	c, ok := vendorCodes[code]
	return c, ok
}

// codeByText resolves a vendor description (short or detailed) back to its
// code. Matching is exact after trimming, as the binary prints them verbatim.
func codeByText(text string) (int, bool) {
	if text == "" {
		return 0, false
	}
	c, ok := vendorText[text]
	return c, ok
}

var vendorText = func() map[string]int {
	m := make(map[string]int, len(vendorCodes)*2)
	for code, c := range vendorCodes {
		m[c.Description] = code
		if c.Short != "" {
			m[c.Short] = code
		}
	}
	return m
}()
