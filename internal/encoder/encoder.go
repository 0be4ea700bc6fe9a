// Package encoder wraps script content for delivery to loader clients.
// The wrapper scheme is deliberately opaque to the rest of the service:
// the orchestrator and the authoring path only see the Encoder interface,
// so the scheme can be swapped without touching the state machine.
package encoder

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Encoder packages raw script content into a deliverable payload.
type Encoder interface {
	Encode(content string) string
}

// DefaultWatermark is prepended to every wrapped payload.
const DefaultWatermark = "-- packaged with scriptguard"

// luaDecoder is the embedded base64 decoder shared by both wrappers.
const luaDecoder = `local __ = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"
local function _D(data)
    data = data:gsub('[^'..__..'=]', '')
    return (data:gsub('.', function(x)
        if (x == '=') then return '' end
        local r, f = '', (__.find(x) - 1)
        for i = 6, 1, -1 do r = r .. (f % 2^i - f % 2^(i-1) > 0 and '1' or '0') end
        return r
    end):gsub('%d%d%d%d%d%d%d%d', function(x)
        local r = 0
        for i = 1, 8 do r = r + (x:sub(i, i) == '1' and 2^(8-i) or 0) end
        return string.char(r)
    end))
end`

// LuaLoader is the delivery-path encoder: it base64-embeds the script in
// a self-decoding loadstring stub.
type LuaLoader struct {
	Watermark string
}

func NewLuaLoader() *LuaLoader { return &LuaLoader{Watermark: DefaultWatermark} }

func (e *LuaLoader) Encode(content string) string {
	data := base64.StdEncoding.EncodeToString([]byte(content))
	return fmt.Sprintf(`%s
local _L = loadstring
local _BC = "%s"
%s
_L(_D(_BC))()`, e.Watermark, data, luaDecoder)
}

// Obfuscator is the authoring-path transform. On top of the delivery
// wrapper it adds an environment check that refuses to run under known
// inspection tools, and runs the payload under pcall.
type Obfuscator struct {
	Watermark string
}

func NewObfuscator() *Obfuscator { return &Obfuscator{Watermark: DefaultWatermark} }

func (e *Obfuscator) Encode(content string) string {
	data := base64.StdEncoding.EncodeToString([]byte(content))
	return fmt.Sprintf(`%s
return (function()
    local _L = loadstring
    local _E = getfenv()

    local function _V()
        if not game or not game:IsA("DataModel") then return false end
        local _T = {"HttpSpy", "SimpleSpy", "Hydroxide", "TurtleSpy"}
        for _, n in pairs(_T) do if _E[n] or _E["_"..n] then return false end end
        return true
    end

    if not _V() then return warn("[scriptguard] environment violation") end

    %s

    local _BC = "%s"
    local success, result = pcall(function()
        return _L(_D(_BC))()
    end)

    if not success then warn("[scriptguard] runtime error: " .. tostring(result)) end
end)()`, e.Watermark, indent(luaDecoder, "    "), data)
}

// AlreadyEncoded reports whether content carries a loader stub of its
// own, in which case the delivery path returns it verbatim.
func AlreadyEncoded(content string) bool {
	return strings.Contains(content, "loadstring")
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i := 1; i < len(lines); i++ {
		if lines[i] != "" {
			lines[i] = prefix + lines[i]
		}
	}
	return strings.Join(lines, "\n")
}
