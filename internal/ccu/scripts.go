package ccu

import "strings"

// Rega scripts executed against tclrega.exe. Each emits a JSON document via
// Write(); the endpoint appends an XML trailer which runScript strips.

// scriptInterfaces enumerates the controller's RPC interfaces.
const scriptInterfaces = `string sId;
boolean bFirst = true;
Write("[");
foreach (sId, root.Interfaces().EnumIDs()) {
  object oIf = dom.GetObject(sId);
  if (bFirst == false) { Write(","); }
  bFirst = false;
  Write("{\"name\":\"" # oIf.Name() # "\",\"url\":\"" # oIf.InterfaceUrl() # "\"}");
}
Write("]");`

// scriptDevices emits the device directory without datapoint lists.
const scriptDevices = `string sDevId;
string sChnId;
boolean bFirstDev = true;
Write("[");
foreach (sDevId, root.Devices().EnumIDs()) {
  object oDev = dom.GetObject(sDevId);
  if (oDev.ReadyConfig() == true) {
    if (bFirstDev == false) { Write(","); }
    bFirstDev = false;
    Write("{\"id\":\"" # sDevId # "\",\"name\":\"" # oDev.Name() # "\",\"serial\":\"" # oDev.Address() # "\",\"channels\":[");
    boolean bFirstChn = true;
    foreach (sChnId, oDev.Channels().EnumIDs()) {
      object oChn = dom.GetObject(sChnId);
      if (bFirstChn == false) { Write(","); }
      bFirstChn = false;
      Write("{\"id\":\"" # sChnId # "\",\"name\":\"" # oChn.Name() # "\",\"address\":\"" # oChn.Address() # "\"}");
    }
    Write("]}");
  }
}
Write("]");`

// scriptDevicesWithDatapoints additionally emits per-channel datapoint names
// in the full address form the admin device browser filters on.
const scriptDevicesWithDatapoints = `string sDevId;
string sChnId;
string sDpId;
boolean bFirstDev = true;
Write("[");
foreach (sDevId, root.Devices().EnumIDs()) {
  object oDev = dom.GetObject(sDevId);
  if (oDev.ReadyConfig() == true) {
    if (bFirstDev == false) { Write(","); }
    bFirstDev = false;
    Write("{\"id\":\"" # sDevId # "\",\"name\":\"" # oDev.Name() # "\",\"serial\":\"" # oDev.Address() # "\",\"channels\":[");
    boolean bFirstChn = true;
    foreach (sChnId, oDev.Channels().EnumIDs()) {
      object oChn = dom.GetObject(sChnId);
      if (bFirstChn == false) { Write(","); }
      bFirstChn = false;
      Write("{\"id\":\"" # sChnId # "\",\"name\":\"" # oChn.Name() # "\",\"address\":\"" # oChn.Address() # "\",\"datapoints\":[");
    boolean bFirstDp = true;
    foreach (sDpId, oChn.DPs().EnumIDs()) {
      object oDp = dom.GetObject(sDpId);
      if (bFirstDp == false) { Write(","); }
      bFirstDp = false;
      Write("{\"id\":\"" # sDpId # "\",\"name\":\"" # oDp.Name() # "\"}");
    }
    Write("]}");
    }
    Write("]}");
  }
}
Write("]");`

// scriptRooms emits the room directory with member channel IDs.
const scriptRooms = `string sRoomId;
string sChnId;
boolean bFirstRoom = true;
Write("[");
foreach (sRoomId, dom.GetObject(ID_ROOMS).EnumIDs()) {
  object oRoom = dom.GetObject(sRoomId);
  if (bFirstRoom == false) { Write(","); }
  bFirstRoom = false;
  Write("{\"id\":\"" # sRoomId # "\",\"name\":\"" # oRoom.Name() # "\",\"channels\":[");
  boolean bFirstChn = true;
  foreach (sChnId, oRoom.EnumUsedIDs()) {
    if (bFirstChn == false) { Write(","); }
    bFirstChn = false;
    Write("\"" # sChnId # "\"");
  }
  Write("]}");
}
Write("]");`

// scriptVariableTemplate emits one system variable snapshot; %IDS% is
// replaced with a tab-separated ID list.
const scriptVariableTemplate = `string sId;
boolean bFirst = true;
Write("[");
foreach (sId, "%IDS%") {
  object oVar = dom.GetObject(sId);
  if (oVar) {
    if (bFirst == false) { Write(","); }
    bFirst = false;
    Write("{\"id\":\"" # sId # "\",\"name\":\"" # oVar.Name() # "\",\"value\":" # oVar.Value().ToString() # ",\"lastUpdate\":\"" # oVar.Timestamp().ToString() # "\"}");
  }
}
Write("]");`

// scriptProgramTemplate emits one program snapshot; %IDS% is replaced with a
// tab-separated ID list.
const scriptProgramTemplate = `string sId;
boolean bFirst = true;
Write("[");
foreach (sId, "%IDS%") {
  object oPrg = dom.GetObject(sId);
  if (oPrg) {
    if (bFirst == false) { Write(","); }
    bFirst = false;
    Write("{\"id\":\"" # sId # "\",\"name\":\"" # oPrg.Name() # "\",\"lastRun\":\"" # oPrg.ProgramLastExecuteTime().ToString() # "\"}");
  }
}
Write("]");`

// buildObjectScript substitutes the ID list into a poll script template.
// Rega's foreach iterates whitespace-separated tokens, so IDs are joined
// with tabs.
func buildObjectScript(template string, ids []string) string {
	return strings.Replace(template, "%IDS%", strings.Join(ids, "\t"), 1)
}
