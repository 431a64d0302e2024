package httpapi

const pageComplete = `<!doctype html>
<html><head><meta charset="utf-8"><title>Authorized</title></head>
<body><h1>Authorization complete</h1><p>You can close this window and return to the agent.</p></body></html>`

const pageDenied = `<!doctype html>
<html><head><meta charset="utf-8"><title>Declined</title></head>
<body><h1>Authorization declined</h1><p>The agent has been told. You can close this window.</p></body></html>`

const pageExpired = `<!doctype html>
<html><head><meta charset="utf-8"><title>Expired</title></head>
<body><h1>This authorization request has expired</h1><p>Start the agent again to get a new link.</p></body></html>`

const pageMissingSession = `<!doctype html>
<html><head><meta charset="utf-8"><title>Bad request</title></head>
<body><h1>Missing session</h1></body></html>`

const pageError = `<!doctype html>
<html><head><meta charset="utf-8"><title>Error</title></head>
<body><h1>Authorization could not be completed</h1><p>Please try again.</p></body></html>`
