// Package plugin loads Lua plugins and binds them to an event bus.
//
// # Plugin Structure
//
// Plugins are either single files or directories:
//
//	plugins/greeter.lua
//
//	plugins/chatguard/
//	├── plugin.yaml      # Manifest (optional)
//	└── init.lua         # Entry point
//
// # Manifest
//
//	name: chatguard
//	version: 1.2.0
//	description: Drops chat spam
//	authors: [alex]
//	main: init.lua
//	depend: [permissions]
//	softdepend: [essentials]
//	config:
//	  words: [spam, scam]
//
// Hard dependencies (depend) must be present and load first. Soft
// dependencies (softdepend) only affect ordering when present.
//
// # Lifecycle
//
//	StateUnloaded -> Load() -> StateLoaded
//	StateLoaded -> Activate() -> StateActive
//	StateActive -> Deactivate() -> StateLoaded
//	StateLoaded -> Unload() -> StateUnloaded
//
// Load runs the main chunk. Activate calls the optional globals
// setup(config) and activate(). Unload calls deactivate() and removes
// every handler the plugin registered, using the plugin name as the
// registration owner.
//
// # Architecture
//
//   - Manager: loads plugins in dependency order and raises plugin.enable
//     and plugin.disable on the bus
//   - Host: one plugin's Lua state and lifecycle
//   - Loader: finds plugins on the search paths
//   - Watcher: reloads plugins when their files change
//
// # Example Plugin
//
//	-- init.lua
//	local words = {}
//
//	function setup(config)
//	    words = config.words or {}
//	end
//
//	function activate()
//	    events.on("player.chat", function(ev)
//	        for _, w in ipairs(words) do
//	            if util.contains(ev.data.message, w) then
//	                ev:cancel()
//	                log.info("dropped chat", { player = ev.data.player })
//	            end
//	        end
//	    end, { priority = "lowest" })
//	end
package plugin
