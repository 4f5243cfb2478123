package cli

var GetIndexConfig = getIndexConfig

var RunChat = runChat
