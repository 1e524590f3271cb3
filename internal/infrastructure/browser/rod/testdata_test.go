package rod

// Test pages for the host session. StubProxyHTML mimics the engine contract
// without loading a model.
const (
	BasicHTML = `<!DOCTYPE html>
<html>
<head><title>Test Page</title></head>
<body>
	<h1>Hello World</h1>
</body>
</html>`

	StubProxyHTML = `<!DOCTYPE html>
<html>
<body>
	<script>
		let ready = false;
		let model = null;
		window.webllmProxy = {
			isReady: () => ready,
			getModel: () => model,
			setModel: async (m) => { model = m; return true; },
			initialize: async (opts) => {
				console.log('initializing', opts.model);
				await new Promise((r) => setTimeout(r, 50));
				model = opts.model;
				ready = true;
			},
			generateText: async (req) => ({
				object: 'chat.completion',
				model: model,
				choices: [{ index: 0, message: { role: 'assistant', content: 'echo: ' + req.messages[0].content } }],
			}),
		};
	</script>
</body>
</html>`

	FailingProxyHTML = `<!DOCTYPE html>
<html>
<body>
	<script>
		window.webllmProxy = {
			isReady: () => false,
			initialize: async () => { throw new Error('WebGPU is not available'); },
		};
	</script>
</body>
</html>`
)
