/*
Package sandbox runs a widget's optional background script.

# Overview

Each instance whose manifest names a script gets its own goja runtime. The
script sees a deliberately small world:

  - console.log/info/warn/error, forwarded to the host log
  - host.widgetId and host.instanceId
  - host.request(capability, args), returning the broker's {success, data, error} envelope
  - host.on(event, fn), registering a handler for host events

require, process, module and exports are removed, and setTimeout/setInterval
are inert. Every entry into the VM (the initial run and each dispatched event)
is bounded by a timeout; running over it interrupts the VM.

A Runtime is not safe for concurrent use. The supervisor drives it from the
instance's actor goroutine only.
*/
package sandbox
