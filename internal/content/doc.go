/*
Package content hosts widget content in an embedded goja VM.

The script sees a WidgetBridge global mirroring the page-side bridge:

	WidgetBridge.registerHandler("setMode", function (data, respond) {
		respond("ok");
	});
	WidgetBridge.callHandler("initialized", {width: 80}, function (reply) {
		console.log("host answered", reply);
	});

require, process, module and exports are removed. console writes to the
host log and setTimeout runs callbacks on the host looper. Every entry into
the VM is bounded by Config.Timeout.
*/
package content
