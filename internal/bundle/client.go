package bundle

// clientRuntime is always part of the bundle. It connects to the live-reload socket only
// when the dev server has announced one through globalThis.__gardener_ws, so production
// output carries it inertly.
const clientRuntime = `
(function () {
  function connect(url) {
    var ws = new WebSocket(url);
    ws.onmessage = function (ev) {
      if (ev.data === "rebuild") {
        location.reload();
      }
    };
    ws.onclose = function () {
      setTimeout(function () { connect(url); }, 1000);
    };
  }
  window.addEventListener("load", function () {
    var url = globalThis.__gardener_ws;
    if (typeof url === "string" && url !== "") {
      connect(url);
    }
  });
})();
`
