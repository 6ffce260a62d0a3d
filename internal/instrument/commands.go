package instrument

import "instrument-firmware/internal/scpi"

// Commands returns the full command table for the dispatcher.
func (e *Engine) Commands() []scpi.Command {
	return []scpi.Command{
		// IEEE 488.2 common commands
		{Pattern: "*RST", Handler: e.cmdRst},
		{Pattern: "*IDN?", Handler: e.cmdIdnQ},
		{Pattern: "*TST?", Handler: e.cmdTstQ},
		{Pattern: "*CLS", Handler: e.cmdCls},
		{Pattern: "*ESE", Handler: e.cmdEse},
		{Pattern: "*ESE?", Handler: e.cmdEseQ},
		{Pattern: "*ESR?", Handler: e.cmdEsrQ},
		{Pattern: "*OPC", Handler: e.cmdOpc},
		{Pattern: "*OPC?", Handler: e.cmdOpcQ},
		{Pattern: "*SRE", Handler: e.cmdSre},
		{Pattern: "*SRE?", Handler: e.cmdSreQ},
		{Pattern: "*STB?", Handler: e.cmdStbQ},
		{Pattern: "*WAI", Handler: e.cmdWai},

		// SYSTem subsystem
		{Pattern: "SYSTem:ERRor[:NEXT]?", Handler: e.cmdSystErrQ},
		{Pattern: "SYSTem:ERRor:COUNt?", Handler: e.cmdSystErrCountQ},
		{Pattern: "SYSTem:VERSion?", Handler: e.cmdSystVersQ},

		// DMM subsystem
		{Pattern: "[DMM:]CONFigure[:VOLTage][:DC]", Handler: e.dmmConfigure},
		{Pattern: "[DMM:]INITiate[:VOLTage][:DC]", Handler: e.dmmInitiate},
		{Pattern: "[DMM:]FETCh[:VOLTage][:DC]?", Handler: e.dmmFetch},
		{Pattern: "[DMM:]READ[:VOLTage][:DC]?", Handler: e.dmmRead},
		{Pattern: "[DMM:]MEASure[:VOLTage][:DC]?", Handler: e.dmmMeasure},

		// Oscilloscope subsystem
		{Pattern: "OSCilloscope:CONFigure:CHANnel", Handler: e.dsoConfChannel},
		{Pattern: "OSCilloscope:CONFigure:CHANnel?", Handler: e.dsoConfChannelQ},
		{Pattern: "OSCilloscope:CONFigure:TIMEbase", Handler: e.dsoConfTimebase},
		{Pattern: "OSCilloscope:CONFigure:TIMEbase?", Handler: e.dsoConfTimebaseQ},
		{Pattern: "OSCilloscope:CONFigure:ACQuire[:POINts]", Handler: e.dsoConfPoints},
		{Pattern: "OSCilloscope:CONFigure:ACQuire[:POINts]?", Handler: e.dsoConfPointsQ},
		{Pattern: "OSCilloscope:CONFigure:ACQuire:SRATe?", Handler: e.dsoSampleRateQ},
		{Pattern: "OSCilloscope:INITiate", Handler: e.dsoInitiate},
		{Pattern: "OSCilloscope:ABORt", Handler: e.dsoAbort},
		{Pattern: "OSCilloscope:FETCh[:DATa]?", Handler: e.dsoFetch},
		{Pattern: "OSCilloscope:READ?", Handler: e.dsoRead},
		{Pattern: "OSCilloscope:MEASure?", Handler: e.dsoMeasure},
		{Pattern: "OSCilloscope:STATus:ACQuisition?", Handler: e.dsoStatusQ},
	}
}
